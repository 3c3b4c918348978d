// Package notifyrest provides the small REST surface utilities: common chi
// middleware and the console-HTTP / Lambda webserver switch.
package notifyrest

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"

	notifycli "github.com/word-collect/notification-service/notify-cli"
)

func Middlewares(service notifycli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withCORS(),
		withLogger(notifycli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

func Webserver(service notifycli.Service, routes chi.Router) error {
	logger := notifycli.Logger(service)

	if notifycli.CommonOpts.Console {
		logger.Info().Int("port", notifycli.CommonOpts.Port).Msg("starting http server")
		addr := fmt.Sprintf(":%v", notifycli.CommonOpts.Port)
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, notifycli.CommonOpts.Env))
	return nil
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
