package router

import (
	"net/http"
	"time"

	"orion/internal/handlers"
)

// NewServer creates a new HTTP server with the router configured.
// writeTimeout must exceed the generation timeout; zero or negative means 15s.
func NewServer(port string, h *handlers.Handlers, writeTimeout time.Duration) *http.Server {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	router := NewRouter(h)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
