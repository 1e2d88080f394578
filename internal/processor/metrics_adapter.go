package processor

import (
	"time"

	"orion/internal/metrics"
)

// metricsAdapter adapts *metrics.Collector to MetricsRecorder interface.
type metricsAdapter struct {
	collector *metrics.Collector
}

// NewMetricsAdapter wraps a metrics.Collector as a MetricsRecorder.
// If collector is nil, returns a no-op implementation.
func NewMetricsAdapter(collector *metrics.Collector) MetricsRecorder {
	if collector == nil {
		return NoopMetrics()
	}
	return &metricsAdapter{collector: collector}
}

func (m *metricsAdapter) RecordRun() {
	m.collector.RecordRun()
}

func (m *metricsAdapter) RecordCompleted(latency time.Duration) {
	m.collector.RecordCompleted(latency)
}

func (m *metricsAdapter) RecordAlerts(generated, persisted int) {
	m.collector.RecordAlerts(generated, persisted)
}

func (m *metricsAdapter) RecordSourceAlerts(source string, n int) {
	m.collector.RecordSourceAlerts(source, n)
}

func (m *metricsAdapter) RecordBranchFailure(source string) {
	m.collector.RecordBranchFailure(source)
}

func (m *metricsAdapter) RecordAcknowledged(affected int64) {
	m.collector.RecordAcknowledged(affected)
}

func (m *metricsAdapter) RecordPublished() {
	m.collector.RecordPublished()
}

func (m *metricsAdapter) RecordError() {
	m.collector.RecordError()
}
