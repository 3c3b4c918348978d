package notifyws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

type fakeGateway struct {
	apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	mu     sync.Mutex
	pushes map[string][][]byte
	errs   map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pushes: map[string][][]byte{},
		errs:   map[string]error{},
	}
}

func (f *fakeGateway) PostToConnectionWithContext(_ aws.Context, input *apigatewaymanagementapi.PostToConnectionInput, _ ...request.Option) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.StringValue(input.ConnectionId)
	f.pushes[id] = append(f.pushes[id], input.Data)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func (f *fakeGateway) pushCount(connectionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes[connectionID])
}

type fakeSource struct {
	mu       sync.Mutex
	conns    []connectiondao.Connection
	deleted  []string
	queryErr error
	scanErr  error
}

func (f *fakeSource) QueryByUser(_ context.Context, userSub string) ([]connectiondao.Connection, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var matched []connectiondao.Connection
	for _, conn := range f.conns {
		if conn.UserSub == userSub {
			matched = append(matched, conn)
		}
	}
	return matched, nil
}

func (f *fakeSource) ScanPages(_ context.Context, fn func(conns []connectiondao.Connection) error) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	// One connection per page to exercise the paging path.
	for _, conn := range f.conns {
		if err := fn([]connectiondao.Connection{conn}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) Delete(_ context.Context, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, connectionID)
	return nil
}

func registry(conns ...connectiondao.Connection) *fakeSource {
	return &fakeSource{conns: conns}
}

func dispatcher(source *fakeSource, gateway *fakeGateway) *Dispatcher {
	return &Dispatcher{
		Connections: source,
		Gateway:     gateway,
		Logger:      zerolog.Nop(),
		Concurrency: 4,
	}
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	targeted := events.CloudWatchEvent{
		ID:         "evt-1",
		DetailType: "AnalysisReady",
		Detail:     json.RawMessage(`{"userSub":"u-42","s3Key":"x"}`),
	}

	t.Run("targeted event reaches only the owner's connections", func(t *testing.T) {
		source := registry(
			connectiondao.Connection{ConnectionID: "A1", UserSub: "u-42"},
			connectiondao.Connection{ConnectionID: "A2", UserSub: "u-99"},
		)
		gateway := newFakeGateway()

		err := dispatcher(source, gateway).HandleBusEvent(ctx, targeted)
		assert.NoError(t, err)
		assert.Equal(t, 1, gateway.pushCount("A1"))
		assert.Equal(t, 0, gateway.pushCount("A2"))
		assert.Equal(t, `{"eventType":"AnalysisReady","userSub":"u-42","s3Key":"x"}`, string(gateway.pushes["A1"][0]))
	})

	t.Run("broadcast event reaches every connection", func(t *testing.T) {
		source := registry(
			connectiondao.Connection{ConnectionID: "A1", UserSub: "u-42"},
			connectiondao.Connection{ConnectionID: "A2", UserSub: "u-99"},
			connectiondao.Connection{ConnectionID: "A3", UserSub: connectiondao.AnonymousUser},
		)
		gateway := newFakeGateway()

		err := dispatcher(source, gateway).HandleBusEvent(ctx, events.CloudWatchEvent{
			DetailType: "CollectionUpdated",
			Detail:     json.RawMessage(`{"collectionId":"c-7"}`),
		})
		assert.NoError(t, err)
		for _, id := range []string{"A1", "A2", "A3"} {
			assert.Equal(t, 1, gateway.pushCount(id))
		}
	})

	t.Run("gone connection is reaped, siblings unaffected", func(t *testing.T) {
		source := registry(
			connectiondao.Connection{ConnectionID: "A1", UserSub: "u-42"},
			connectiondao.Connection{ConnectionID: "B7", UserSub: "u-42"},
		)
		gateway := newFakeGateway()
		gateway.errs["A1"] = awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil)

		err := dispatcher(source, gateway).HandleBusEvent(ctx, targeted)
		assert.NoError(t, err)
		assert.Equal(t, []string{"A1"}, source.deleted)
		assert.Equal(t, 1, gateway.pushCount("B7"))
	})

	t.Run("transient failure mutates nothing", func(t *testing.T) {
		source := registry(
			connectiondao.Connection{ConnectionID: "A1", UserSub: "u-42"},
			connectiondao.Connection{ConnectionID: "B7", UserSub: "u-42"},
		)
		gateway := newFakeGateway()
		gateway.errs["A1"] = awserr.New(apigatewaymanagementapi.ErrCodeLimitExceededException, "throttled", nil)

		err := dispatcher(source, gateway).HandleBusEvent(ctx, targeted)
		assert.NoError(t, err)
		assert.Empty(t, source.deleted)
		assert.Equal(t, 1, gateway.pushCount("B7"))
	})

	t.Run("empty target set completes without error", func(t *testing.T) {
		gateway := newFakeGateway()
		err := dispatcher(registry(), gateway).HandleBusEvent(ctx, targeted)
		assert.NoError(t, err)
		assert.Empty(t, gateway.pushes)
	})

	t.Run("registry resolution failure abandons the dispatch", func(t *testing.T) {
		source := registry()
		source.queryErr = fmt.Errorf("throttled")
		gateway := newFakeGateway()

		err := dispatcher(source, gateway).HandleBusEvent(ctx, targeted)
		assert.NoError(t, err)
		assert.Empty(t, gateway.pushes)
	})

	t.Run("unroutable event is dropped", func(t *testing.T) {
		gateway := newFakeGateway()
		err := dispatcher(registry(), gateway).HandleBusEvent(ctx, events.CloudWatchEvent{
			DetailType: "AnalysisReady",
			Detail:     json.RawMessage(`not json`),
		})
		assert.NoError(t, err)
		assert.Empty(t, gateway.pushes)
	})
}
