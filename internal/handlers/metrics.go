package handlers

import (
	"log/slog"
	"net/http"

	"orion/internal/metrics"
)

// GetServiceMetrics returns the engine metrics last reported to Redis.
// GET /api/v1/metrics
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if h.metricsReader == nil {
		http.Error(w, "Metrics reader not available", http.StatusServiceUnavailable)
		return
	}

	serviceMetrics, err := h.metricsReader.GetServiceMetrics(r.Context(), h.serviceName)
	if err != nil {
		slog.Warn("Failed to get service metrics", "service", h.serviceName, "error", err)
		// Return empty metrics with offline status instead of error
		serviceMetrics = &metrics.ServiceMetrics{
			ServiceName: h.serviceName,
			Status:      "offline",
		}
	}
	writeJSON(w, http.StatusOK, serviceMetrics)
}
