package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"orion/internal/alerts"
	"orion/internal/processor"
)

// handleServiceError writes the HTTP response for an engine error.
// Returns true if error was handled, false otherwise.
func handleServiceError(w http.ResponseWriter, err error, operation string, tenantID string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, alerts.ErrInvalidScope), errors.Is(err, processor.ErrInvalidAcknowledgment):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return true
	case errors.Is(err, context.DeadlineExceeded):
		slog.Error("Operation timed out", "operation", operation, "tenant_id", tenantID, "error", err)
		http.Error(w, "Failed to "+operation+": timed out", http.StatusGatewayTimeout)
		return true
	}

	slog.Error("Operation failed", "operation", operation, "tenant_id", tenantID, "error", err)
	http.Error(w, "Failed to "+operation, http.StatusInternalServerError)
	return true
}
