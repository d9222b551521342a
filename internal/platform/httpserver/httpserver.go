// Package httpserver assembles the application's http.Server from
// configuration.
package httpserver

import (
	"net/http"

	"memberhub/internal/platform/config"
)

// New builds an HTTP server with the configured connection timeouts. The
// write timeout has to outlast the router's per-request timeout or slow
// export downloads get cut off mid-body.
func New(addr string, handler http.Handler, cfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
