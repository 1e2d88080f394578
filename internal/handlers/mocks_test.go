// Package handlers provides test mocks for handler dependencies.
package handlers

import (
	"context"

	"orion/internal/alerts"
	"orion/internal/metrics"
	"orion/internal/processor"
)

// mockService implements AlertService for testing.
type mockService struct {
	// Callbacks for each method (set these to control behavior)
	GenerateAllAlertsFn func(ctx context.Context, scope alerts.Scope) (*processor.GenerateResult, error)
	GetActiveAlertsFn   func(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error)
	AcknowledgeAlertFn  func(ctx context.Context, alertID, tenantID, userID string) (int64, error)
	InitializeSessionFn func(ctx context.Context, scope alerts.Scope) []*alerts.Alert
}

func (m *mockService) GenerateAllAlerts(ctx context.Context, scope alerts.Scope) (*processor.GenerateResult, error) {
	if m.GenerateAllAlertsFn != nil {
		return m.GenerateAllAlertsFn(ctx, scope)
	}
	return &processor.GenerateResult{Alerts: []*alerts.Alert{}}, nil
}

func (m *mockService) GetActiveAlerts(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error) {
	if m.GetActiveAlertsFn != nil {
		return m.GetActiveAlertsFn(ctx, scope, limit)
	}
	return []*alerts.Alert{}, nil
}

func (m *mockService) AcknowledgeAlert(ctx context.Context, alertID, tenantID, userID string) (int64, error) {
	if m.AcknowledgeAlertFn != nil {
		return m.AcknowledgeAlertFn(ctx, alertID, tenantID, userID)
	}
	return 1, nil
}

func (m *mockService) InitializeSession(ctx context.Context, scope alerts.Scope) []*alerts.Alert {
	if m.InitializeSessionFn != nil {
		return m.InitializeSessionFn(ctx, scope)
	}
	return []*alerts.Alert{}
}

// mockMetricsReader implements MetricsReader for testing.
type mockMetricsReader struct {
	metrics *metrics.ServiceMetrics
	err     error
}

func (m *mockMetricsReader) GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.metrics, nil
}
