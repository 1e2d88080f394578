package handlers

import (
	"orion/internal/metrics"
)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	service       AlertService
	metricsReader MetricsReader
	collector     *metrics.Collector
	serviceName   string
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetricsReader enables GET /api/v1/metrics for the named service.
func WithMetricsReader(reader MetricsReader, serviceName string) Option {
	return func(h *Handlers) {
		if reader != nil {
			h.metricsReader = reader
			h.serviceName = serviceName
		}
	}
}

// WithCollector sets the collector used by the router's metrics middleware.
func WithCollector(c *metrics.Collector) Option {
	return func(h *Handlers) {
		h.collector = c
	}
}

// NewHandlers creates a new handlers instance.
func NewHandlers(service AlertService, opts ...Option) *Handlers {
	h := &Handlers{
		service:     service,
		serviceName: "orion",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetMetricsCollector returns the metrics collector for middleware use. It may be nil.
func (h *Handlers) GetMetricsCollector() *metrics.Collector {
	return h.collector
}
