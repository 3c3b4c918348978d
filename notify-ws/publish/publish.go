// Package publish emits word-collect domain events onto the shared
// EventBridge bus. Backend services publish here; the notify-frontend Lambda
// receives the events through bus rules and fans them out to clients.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/eventbridge"
	"github.com/aws/aws-sdk-go/service/eventbridge/eventbridgeiface"
	"github.com/google/uuid"
)

// Event is one domain event to publish. Detail must marshal to a JSON object;
// include a userSub field to target the owning user's connections, omit it to
// broadcast.
type Event struct {
	Source     string
	DetailType string
	Detail     interface{}
}

// Publisher publishes events to the shared word-collect event bus.
type Publisher struct {
	client  eventbridgeiface.EventBridgeAPI
	busName string
}

// New creates a new Publisher.
func New(client eventbridgeiface.EventBridgeAPI, busName string) *Publisher {
	return &Publisher{
		client:  client,
		busName: busName,
	}
}

// Build creates a new Publisher using the standard bus name for the given
// environment.
func Build(env string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	return New(eventbridge.New(sess), BusName(env))
}

// BusName returns the shared event bus name for the given environment.
func BusName(env string) string {
	return env + "-word-collect-event-bus"
}

// Send publishes one event to the bus. A traceId attribute is stamped into
// the detail for log correlation across the publisher and the fan-out.
func (p *Publisher) Send(ctx context.Context, event Event) (traceID string, err error) {
	if event.Source == "" || event.DetailType == "" {
		return "", fmt.Errorf("event source and detail-type are required")
	}

	detailBytes, err := json.Marshal(event.Detail)
	if err != nil {
		return "", fmt.Errorf("marshalling event detail: %w", err)
	}

	var detail map[string]json.RawMessage
	if err := json.Unmarshal(detailBytes, &detail); err != nil {
		return "", fmt.Errorf("event detail must be a JSON object: %w", err)
	}

	traceID = uuid.NewString()
	detail["traceId"] = json.RawMessage(fmt.Sprintf("%q", traceID))
	detailBytes, err = json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("marshalling event detail: %w", err)
	}

	output, err := p.client.PutEventsWithContext(ctx, &eventbridge.PutEventsInput{
		Entries: []*eventbridge.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(event.Source),
				DetailType:   aws.String(event.DetailType),
				Detail:       aws.String(string(detailBytes)),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publishing to event bus %v: %w", p.busName, err)
	}
	if aws.Int64Value(output.FailedEntryCount) > 0 {
		entry := output.Entries[0]
		return "", fmt.Errorf("event bus rejected entry: %v %v",
			aws.StringValue(entry.ErrorCode), aws.StringValue(entry.ErrorMessage))
	}

	return traceID, nil
}
