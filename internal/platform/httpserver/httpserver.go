// Package httpserver owns server construction so timeouts live in one place.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. ReadHeaderTimeout guards against slow-header
// clients; request bodies are small JSON and need no further limits here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
