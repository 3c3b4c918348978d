package notifyws

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/word-collect/notification-service/notify-ws/connectiondao"
)

// ConnectionRegistry is the mutation surface the lifecycle handler needs.
// *connectiondao.DAO satisfies it.
type ConnectionRegistry interface {
	Put(ctx context.Context, conn connectiondao.Connection) error
	Delete(ctx context.Context, connectionID string) error
}

// Handler translates API Gateway WebSocket lifecycle events into connection
// registry mutations. Authentication happens upstream in the Lambda
// authorizer; by the time $connect reaches this handler the verified identity
// is in the request's authorizer context.
type Handler struct {
	Connections ConnectionRegistry
	Logger      zerolog.Logger
	ConnTTL     time.Duration // retention horizon for missed disconnects (default 24 hours)

	// AllowAnonymous admits connections that carry no authorizer identity,
	// bucketing them under the shared anonymous owner. Off by default: an
	// unauthenticated $connect is refused before any record is written.
	AllowAnonymous bool
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	switch req.RequestContext.RouteKey {
	case "$connect":
		return h.handleConnect(ctx, logger, req)
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	default:
		logger.Warn().Msg("unknown route")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	userSub := authorizerString(req, "sub")
	if userSub == "" {
		if !h.AllowAnonymous {
			logger.Warn().Msg("connection has no authorizer identity, refusing")
			return events.APIGatewayProxyResponse{StatusCode: 403}, nil
		}
		userSub = connectiondao.AnonymousUser
	}

	ttl := h.ConnTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	conn := connectiondao.Connection{
		ConnectionID: req.RequestContext.ConnectionID,
		UserSub:      userSub,
		ConnectedAt:  now.Unix(),
		TTL:          now.Add(ttl).Unix(),
	}

	if err := h.Connections.Put(ctx, conn); err != nil {
		logger.Error().Err(err).Msg("failed to store connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Str("user_sub", userSub).Msg("connection established")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	// Delete is idempotent: disconnects for unknown connections still succeed.
	if err := h.Connections.Delete(ctx, req.RequestContext.ConnectionID); err != nil {
		logger.Error().Err(err).Msg("failed to delete connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func authorizerString(req events.APIGatewayWebsocketProxyRequest, key string) string {
	authorizer, ok := req.RequestContext.Authorizer.(map[string]interface{})
	if !ok {
		return ""
	}
	value, _ := authorizer[key].(string)
	return value
}
