package notifyws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

// Dispatch is the addressing decision and wire payload for one inbound bus
// event. Events carrying a userSub in their detail are targeted at that
// user's connections; events without one fan out to every live connection.
type Dispatch struct {
	EventID   string
	EventType string
	UserSub   string
	Broadcast bool
	Payload   []byte
}

// ErrAnonymousTarget is returned for events that try to target the shared
// anonymous bucket. Anonymous connections only ever receive broadcasts;
// treating "anonymous" as a user would leak one client's events to every
// unauthenticated connection.
var ErrAnonymousTarget = fmt.Errorf("targeted event addressed to the anonymous bucket")

// Route classifies an inbound EventBridge event and assembles the payload
// delivered to clients. Event types are not filtered; the only branch point
// is the addressing decision.
func Route(event events.CloudWatchEvent) (Dispatch, error) {
	eventType := event.DetailType
	if eventType == "" {
		eventType = "unknown"
	}

	var addressing struct {
		UserSub string `json:"userSub"`
	}
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &addressing); err != nil {
			return Dispatch{}, fmt.Errorf("unmarshalling event %v detail: %w", event.ID, err)
		}
	}
	if addressing.UserSub == connectiondao.AnonymousUser {
		return Dispatch{}, ErrAnonymousTarget
	}

	payload, err := splicePayload(eventType, event.Detail)
	if err != nil {
		return Dispatch{}, fmt.Errorf("assembling payload for event %v: %w", event.ID, err)
	}

	return Dispatch{
		EventID:   event.ID,
		EventType: eventType,
		UserSub:   addressing.UserSub,
		Broadcast: addressing.UserSub == "",
		Payload:   payload,
	}, nil
}

// splicePayload prefixes the detail object with an eventType field without
// re-marshalling it, so attribute fields reach clients byte-for-byte in their
// original order.
func splicePayload(eventType string, detail json.RawMessage) ([]byte, error) {
	typeJSON, err := json.Marshal(eventType)
	if err != nil {
		return nil, fmt.Errorf("marshalling event type: %w", err)
	}

	trimmed := bytes.TrimSpace(detail)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	if trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return nil, fmt.Errorf("event detail is not a JSON object")
	}

	var buf bytes.Buffer
	buf.Grow(len(trimmed) + len(typeJSON) + 16)
	buf.WriteString(`{"eventType":`)
	buf.Write(typeJSON)
	if rest := bytes.TrimSpace(trimmed[1 : len(trimmed)-1]); len(rest) > 0 {
		buf.WriteByte(',')
		buf.Write(rest)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
