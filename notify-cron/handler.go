// Package notifycron provides utilities for building scheduled Lambda
// functions.
package notifycron

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	notifycli "github.com/word-collect/notification-service/notify-cli"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service notifycli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service notifycli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  notifycli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

func (h *Handler) Start() error {
	switch {
	case notifycli.CommonOpts.Console:
		return h.runOnce(context.Background())

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
