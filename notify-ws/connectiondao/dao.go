package connectiondao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the WebSocket connections table. Records carry a ttl
// attribute enforced by DynamoDB; reads additionally treat expired records as
// absent, since TTL deletion can lag by minutes.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a connection record, overwriting any record with the same
// connection id.
func (d *DAO) Put(ctx context.Context, conn Connection) error {
	if err := d.table.Put(conn).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to put connection %v: %w", conn.ConnectionID, err)
	}
	return nil
}

// Get retrieves a connection record by ID. Expired records are reported as
// not found.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, fmt.Errorf("connection %v not found", connectionID)
		}
		return nil, fmt.Errorf("failed to get connection %v: %w", connectionID, err)
	}
	if expired(conn, time.Now()) {
		return nil, fmt.Errorf("connection %v not found", connectionID)
	}
	return &conn, nil
}

// Delete removes a connection record by ID; deleting an absent record is not
// an error.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	if err := d.table.Delete(connectionID).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete connection %v: %w", connectionID, err)
	}
	return nil
}

// QueryByUser returns every live connection owned by the given user via the
// userSub-index GSI. Returns an empty slice when the user has none.
func (d *DAO) QueryByUser(ctx context.Context, userSub string) ([]Connection, error) {
	var conns []Connection
	err := d.table.Query("#UserSub = ?", userSub).
		IndexName("userSub-index").
		FindAllWithContext(ctx, &conns)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections for user %v: %w", userSub, err)
	}
	return dropExpired(conns, time.Now()), nil
}

// ScanPages iterates every live connection in pages, invoking fn once per
// page. Used only for broadcast addressing; paging keeps a full-table read
// from materializing the whole registry at once, and the callback can stop
// iteration early by returning an error.
func (d *DAO) ScanPages(ctx context.Context, fn func(conns []Connection) error) error {
	var callbackErr error
	err := d.api.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var conns []Connection
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &conns); err != nil {
			callbackErr = fmt.Errorf("failed to unmarshal connections page: %w", err)
			return false
		}
		conns = dropExpired(conns, time.Now())
		if len(conns) == 0 {
			return true
		}
		if err := fn(conns); err != nil {
			callbackErr = err
			return false
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan connections: %w", err)
	}
	return callbackErr
}

// ReapExpired deletes every record whose retention horizon has passed.
// DynamoDB's TTL sweep usually handles this; the reaper is the backstop for
// tables where the TTL attribute is disabled.
func (d *DAO) ReapExpired(ctx context.Context) (int, error) {
	var expired []string
	err := d.api.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("#ttl <= :now"),
		ExpressionAttributeNames: map[string]*string{
			"#ttl": aws.String("ttl"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":now": {N: aws.String(fmt.Sprintf("%v", time.Now().Unix()))},
		},
		ProjectionExpression: aws.String("connectionId"),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			if id := item["connectionId"]; id != nil && id.S != nil {
				expired = append(expired, *id.S)
			}
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan for expired connections: %w", err)
	}

	reaped := 0
	for _, connectionID := range expired {
		if err := d.Delete(ctx, connectionID); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

func expired(conn Connection, now time.Time) bool {
	return conn.TTL != 0 && conn.TTL <= now.Unix()
}

func dropExpired(conns []Connection, now time.Time) []Connection {
	live := conns[:0]
	for _, conn := range conns {
		if !expired(conn, now) {
			live = append(live, conn)
		}
	}
	return live
}
