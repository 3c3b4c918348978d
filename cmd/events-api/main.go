package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	notifycli "github.com/word-collect/notification-service/notify-cli"
	notifyrest "github.com/word-collect/notification-service/notify-rest"
	"github.com/word-collect/notification-service/notify-ws/publish"
)

var service = notifycli.NewService("events-api")

func main() {
	app := notifycli.App(
		service,
		action,
		append(
			append([]cli.Flag{}, notifycli.CommonFlags...),
			notifycli.PortFlag(5005),
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	publisher := publish.Build(notifycli.CommonOpts.Env)
	logger := notifycli.Logger(service)

	router := chi.NewRouter()
	notifyrest.Middlewares(service, router)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Post("/events", handlePublish(publisher, logger))

	return notifyrest.Webserver(service, router)
}

type publishRequest struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Detail     json.RawMessage `json:"detail"`
}

func handlePublish(publisher *publish.Publisher, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body publishRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.DetailType == "" {
			http.Error(w, "detailType is required", http.StatusBadRequest)
			return
		}
		if body.Source == "" {
			body.Source = service.Name
		}
		if len(body.Detail) == 0 {
			body.Detail = json.RawMessage(`{}`)
		}

		traceID, err := publisher.Send(req.Context(), publish.Event{
			Source:     body.Source,
			DetailType: body.DetailType,
			Detail:     body.Detail,
		})
		if err != nil {
			logger.Error().Err(err).Str("detail_type", body.DetailType).Msg("failed to publish event")
			http.Error(w, "failed to publish event", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"traceId": traceID})
	}
}
