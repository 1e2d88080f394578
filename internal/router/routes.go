package router

import (
	"net/http"
)

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	// Alert endpoints
	r.mux.HandleFunc("/api/v1/alerts/generate", r.handlers.GenerateAlerts)
	r.mux.HandleFunc("/api/v1/alerts/active", r.handlers.GetActiveAlerts)
	r.mux.HandleFunc("/api/v1/alerts/acknowledge", r.handlers.AcknowledgeAlert)

	// Session endpoints
	r.mux.HandleFunc("/api/v1/sessions/init", r.handlers.InitSession)

	// Metrics endpoint
	r.mux.HandleFunc("/api/v1/metrics", r.handlers.GetServiceMetrics)

	// Health check endpoint
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
