package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/carbonstats/internal/api"
	apiMiddleware "github.com/phrazzld/carbonstats/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	zonalHandler := api.NewZonalStatsHandler(
		app.zonalService,
		app.config.Server.MaxBodyBytes,
		app.config.Server.RetryAfterSeconds,
		app.logger,
	)

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.AllowContentType("application/json")).
			Post("/zonal-stats", zonalHandler.Submit)
		r.Get("/tasks/{taskID}", zonalHandler.GetTask)
		r.Get("/echo/{text}", api.Echo)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	if app.metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.metrics.Handler())
	}

	return r
}
