// Package processor provides the ORION alert orchestration: concurrent detection,
// batch persistence, retrieval and acknowledgment.
package processor

import (
	"context"
	"time"

	"orion/internal/alerts"
	"orion/internal/events"
)

// AlertStore persists alerts and applies the acknowledgment transition.
type AlertStore interface {
	// InsertAlerts stores a batch atomically and returns the alerts that became new rows.
	InsertAlerts(ctx context.Context, batch []*alerts.Alert) ([]*alerts.Alert, error)

	// ListActiveAlerts returns ACTIVE alerts ordered by severity then recency.
	ListActiveAlerts(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error)

	// AcknowledgeAlert moves an ACTIVE alert of the tenant to ACKNOWLEDGED and returns the affected row count.
	AcknowledgeAlert(ctx context.Context, alertID, tenantID, userID string, at time.Time) (int64, error)
}

// EventPublisher publishes alert lifecycle events.
type EventPublisher interface {
	PublishGenerated(ctx context.Context, e *events.AlertGenerated) error
	PublishAcknowledged(ctx context.Context, e *events.AlertAcknowledged) error
}

// MetricsRecorder records orchestration metrics.
type MetricsRecorder interface {
	RecordRun()
	RecordCompleted(latency time.Duration)
	RecordAlerts(generated, persisted int)
	RecordSourceAlerts(source string, n int)
	RecordBranchFailure(source string)
	RecordAcknowledged(affected int64)
	RecordPublished()
	RecordError()
}

// noopMetrics is a no-op implementation of MetricsRecorder.
// This avoids scattered nil checks throughout the code.
type noopMetrics struct{}

func (noopMetrics) RecordRun()                     {}
func (noopMetrics) RecordCompleted(time.Duration)  {}
func (noopMetrics) RecordAlerts(int, int)          {}
func (noopMetrics) RecordSourceAlerts(string, int) {}
func (noopMetrics) RecordBranchFailure(string)     {}
func (noopMetrics) RecordAcknowledged(int64)       {}
func (noopMetrics) RecordPublished()               {}
func (noopMetrics) RecordError()                   {}

// NoopMetrics returns a no-op metrics recorder.
func NoopMetrics() MetricsRecorder {
	return noopMetrics{}
}

// noopPublisher drops every event. It is used when Kafka is not configured.
type noopPublisher struct{}

func (noopPublisher) PublishGenerated(context.Context, *events.AlertGenerated) error       { return nil }
func (noopPublisher) PublishAcknowledged(context.Context, *events.AlertAcknowledged) error { return nil }
