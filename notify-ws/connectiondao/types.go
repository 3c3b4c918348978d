package connectiondao

// AnonymousUser is the owner bucket for connections admitted without an
// authenticated identity. Only used when the handler allows anonymous
// connections; targeted fan-out never addresses it.
const AnonymousUser = "anonymous"

// Connection represents a WebSocket connection stored in DynamoDB.
type Connection struct {
	ConnectionID string `dynamodbav:"connectionId" ddb:"hash"`
	UserSub      string `dynamodbav:"userSub" ddb:"gsi_hash:userSub-index"`
	ConnectedAt  int64  `dynamodbav:"connectedAt"`
	TTL          int64  `dynamodbav:"ttl"`
}
