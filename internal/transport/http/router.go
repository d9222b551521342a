// Package http assembles the routing table and middleware chain.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memberhub/internal/platform/metrics"
	"memberhub/internal/platform/middleware"
	"memberhub/internal/privacy/handler"
)

type Deps struct {
	Privacy   *handler.Handler
	Validator middleware.JWTValidator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Health    func() error
}

// NewRouter builds the full routing table. Probes and metrics stay outside
// the auth chain; everything under /privacy requires a valid token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/privacy", func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		r.Use(middleware.ContentTypeJSON)

		r.Post("/export", deps.Privacy.RequestExport)
		r.Get("/export/{id}", deps.Privacy.GetExport)
		r.Delete("/export/{id}", deps.Privacy.PurgeExport)

		r.Post("/delete-account", deps.Privacy.DeleteAccount)
		r.Get("/deletion/{id}", deps.Privacy.GetDeletion)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(deps.Logger))
			r.Post("/deletion/{id}/retry", deps.Privacy.RetryDeletion)
		})
	})

	return r
}
