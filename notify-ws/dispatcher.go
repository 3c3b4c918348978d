// Package notifyws implements the WebSocket side of the notification
// service: the $connect/$disconnect lifecycle handler, the event router, and
// the fan-out dispatcher that pushes bus events to connected clients.
package notifyws

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	notifycli "github.com/word-collect/notification-service/notify-cli"
	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

// ConnectionSource resolves and reconciles the registry for fan-out.
// *connectiondao.DAO satisfies it.
type ConnectionSource interface {
	QueryByUser(ctx context.Context, userSub string) ([]connectiondao.Connection, error)
	ScanPages(ctx context.Context, fn func(conns []connectiondao.Connection) error) error
	Delete(ctx context.Context, connectionID string) error
}

// Dispatcher fans out bus events to connected WebSocket clients.
type Dispatcher struct {
	Connections ConnectionSource
	Gateway     apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
	Logger      zerolog.Logger
	Metrics     *notifycli.Metrics
	Concurrency int           // max concurrent PostToConnection calls (default 50)
	PushTimeout time.Duration // per-connection push bound (default 10s)
}

// HandleBusEvent processes one EventBridge event. Partial delivery failure is
// steady state, so the handler never reports an error back to the bus; a
// failed dispatch is logged and dropped rather than retried.
func (d *Dispatcher) HandleBusEvent(ctx context.Context, event events.CloudWatchEvent) error {
	logger := d.Logger.With().
		Str("event_id", event.ID).
		Str("event_type", event.DetailType).
		Logger()

	dispatch, err := Route(event)
	if err != nil {
		logger.Warn().Err(err).Msg("event not routable, dropping")
		return nil
	}

	d.dispatch(ctx, logger, dispatch)
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, logger zerolog.Logger, dispatch Dispatch) {
	var (
		start     = time.Now()
		delivered int64
		stale     int64
		failed    int64
	)

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 50
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	// Pushes are independent: every goroutine returns nil so no outcome can
	// cancel or short-circuit a sibling.
	push := func(conn connectiondao.Connection) {
		g.Go(func() error {
			switch err := d.push(ctx, conn.ConnectionID, dispatch.Payload); {
			case err == nil:
				atomic.AddInt64(&delivered, 1)

			case isGoneException(err):
				logger.Info().
					Str("connection_id", conn.ConnectionID).
					Msg("connection gone, cleaning up")
				if err := d.Connections.Delete(ctx, conn.ConnectionID); err != nil {
					logger.Error().Err(err).
						Str("connection_id", conn.ConnectionID).
						Msg("failed to delete gone connection")
				}
				atomic.AddInt64(&stale, 1)

			default:
				logger.Warn().Err(err).
					Str("connection_id", conn.ConnectionID).
					Msg("failed to push to connection")
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}

	var resolveErr error
	if dispatch.Broadcast {
		resolveErr = d.Connections.ScanPages(ctx, func(conns []connectiondao.Connection) error {
			for _, conn := range conns {
				push(conn)
			}
			return nil
		})
	} else {
		conns, err := d.Connections.QueryByUser(ctx, dispatch.UserSub)
		if err != nil {
			resolveErr = err
		}
		for _, conn := range conns {
			push(conn)
		}
	}

	g.Wait()

	if resolveErr != nil {
		logger.Error().Err(resolveErr).Msg("failed to resolve target connections, dispatch abandoned")
		return
	}

	logger.Debug().
		Int64("delivered", atomic.LoadInt64(&delivered)).
		Int64("stale", atomic.LoadInt64(&stale)).
		Int64("failed", atomic.LoadInt64(&failed)).
		Msg("dispatch complete")

	if d.Metrics != nil {
		dimensions := map[notifycli.DimensionName]string{
			notifycli.EventTypeDimension: dispatch.EventType,
		}
		d.Metrics.Gauge(ctx, notifycli.DeliveredConnectionsMetric, float64(delivered), dimensions)
		d.Metrics.Gauge(ctx, notifycli.StaleConnectionsMetric, float64(stale), dimensions)
		d.Metrics.Gauge(ctx, notifycli.FailedDeliveriesMetric, float64(failed), dimensions)
		d.Metrics.Timing(ctx, notifycli.FanoutTimeMetric, start, dimensions)
	}
}

func (d *Dispatcher) push(ctx context.Context, connectionID string, payload []byte) error {
	timeout := d.PushTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := d.Gateway.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	return err
}

// isGoneException checks whether the error is the API Gateway GoneException
// (HTTP 410), the canonical signal that the WebSocket connection no longer
// exists.
func isGoneException(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == apigatewaymanagementapi.ErrCodeGoneException {
		return true
	}
	return strings.Contains(err.Error(), "GoneException") ||
		strings.Contains(err.Error(), "410")
}
