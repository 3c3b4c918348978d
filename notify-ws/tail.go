package notifyws

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	consumer "github.com/harlow/kinesis-consumer"
)

// MirrorStreamName returns the Kinesis stream that mirrors the shared event
// bus for the given environment.
func MirrorStreamName(env string) string {
	return env + "-word-collect--bus-mirror"
}

// Tail consumes the bus mirror Kinesis stream and dispatches each event, for
// running the fan-out locally with --console. The mirror stream carries the
// same JSON envelope EventBridge delivers to the Lambda target.
func (d *Dispatcher) Tail(ctx context.Context, streamName string, replay bool) error {
	iteratorType := "LATEST"
	if replay {
		iteratorType = "TRIM_HORIZON"
	}
	c, err := consumer.New(streamName, consumer.WithShardIteratorType(iteratorType))
	if err != nil {
		return err
	}

	ctx = d.Logger.WithContext(ctx)
	d.Logger.Info().Str("stream", streamName).Msg("tailing bus mirror stream")
	return c.Scan(ctx, func(record *consumer.Record) error {
		var event events.CloudWatchEvent
		if err := json.Unmarshal(record.Data, &event); err != nil {
			d.Logger.Warn().Err(err).Msg("skipping unparseable bus record")
			return nil
		}
		return d.HandleBusEvent(ctx, event)
	})
}
