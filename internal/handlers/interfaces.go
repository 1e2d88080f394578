// Package handlers provides HTTP handlers for the ORION API.
package handlers

import (
	"context"

	"orion/internal/alerts"
	"orion/internal/metrics"
	"orion/internal/processor"
)

// AlertService is the alert engine as seen by the HTTP layer.
// This interface allows handlers to be tested without a database.
type AlertService interface {
	GenerateAllAlerts(ctx context.Context, scope alerts.Scope) (*processor.GenerateResult, error)
	GetActiveAlerts(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID, tenantID, userID string) (int64, error)
	InitializeSession(ctx context.Context, scope alerts.Scope) []*alerts.Alert
}

// MetricsReader reads reported service metrics.
type MetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
}
