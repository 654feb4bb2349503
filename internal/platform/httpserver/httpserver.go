// Package httpserver holds the http.Server construction so cmd/server stays
// focused on wiring.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with sane timeouts. WriteTimeout stays generous
// because report runs can stream progress over long-lived connections.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
