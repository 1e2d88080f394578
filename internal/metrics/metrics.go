// Package metrics collects ORION engine counters and reports them to Redis
// so dashboards can read them without querying the service.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the reported state of the engine.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	// Counters (monotonically increasing since start)
	GenerationRuns       uint64 `json:"generation_runs"`
	GenerationsCompleted uint64 `json:"generations_completed"`
	AlertsGenerated      uint64 `json:"alerts_generated"`
	AlertsPersisted      uint64 `json:"alerts_persisted"`
	AlertsAcknowledged   uint64 `json:"alerts_acknowledged"`
	EventsPublished      uint64 `json:"events_published"`
	BranchFailures       uint64 `json:"branch_failures"`
	Errors               uint64 `json:"errors"`

	// Completed generations per second since the last report
	GenerationsPerSecond float64 `json:"generations_per_second"`

	// All-time average generation latency in nanoseconds
	AvgGenerationLatencyNs float64 `json:"avg_generation_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects and reports engine metrics.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	generationRuns       atomic.Uint64
	generationsCompleted atomic.Uint64
	alertsGenerated      atomic.Uint64
	alertsPersisted      atomic.Uint64
	alertsAcknowledged   atomic.Uint64
	eventsPublished      atomic.Uint64
	branchFailures       atomic.Uint64
	errors               atomic.Uint64

	// Guarded by reportMu; touched by the reporting goroutine and GetSnapshot callers.
	reportMu           sync.Mutex
	lastReportTime     time.Time
	lastCompletedCount uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector. A nil redis client keeps metrics in memory only.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis. Call before Start.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordRun counts a generation request.
func (c *Collector) RecordRun() {
	c.generationRuns.Add(1)
}

// RecordCompleted counts a finished generation and its latency.
func (c *Collector) RecordCompleted(latency time.Duration) {
	c.generationsCompleted.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordAlerts counts alerts produced by a run and how many became new rows.
func (c *Collector) RecordAlerts(generated, persisted int) {
	c.alertsGenerated.Add(uint64(generated))
	c.alertsPersisted.Add(uint64(persisted))
	if skipped := generated - persisted; skipped > 0 {
		c.AddCustom("alerts_deduplicated", uint64(skipped))
	}
}

// RecordSourceAlerts counts alerts raised by one detector.
func (c *Collector) RecordSourceAlerts(source string, n int) {
	c.AddCustom("alerts_from_"+source, uint64(n))
}

// RecordBranchFailure counts a detector that failed during a run.
func (c *Collector) RecordBranchFailure(source string) {
	c.branchFailures.Add(1)
	c.IncrementCustom("branch_failures_" + source)
}

// RecordAcknowledged counts an acknowledgment request by outcome.
func (c *Collector) RecordAcknowledged(affected int64) {
	if affected > 0 {
		c.alertsAcknowledged.Add(uint64(affected))
		return
	}
	c.IncrementCustom("acknowledgments_noop")
}

// RecordPublished counts a published lifecycle event.
func (c *Collector) RecordPublished() {
	c.eventsPublished.Add(1)
}

// RecordError counts a failed operation.
func (c *Collector) RecordError() {
	c.errors.Add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	completed := c.generationsCompleted.Load()

	c.reportMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	lastCompleted := c.lastCompletedCount
	c.reportMu.Unlock()

	var rate float64
	if elapsed > 0 {
		rate = float64(completed-lastCompleted) / elapsed
	}

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	customCounters := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		customCounters[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		Status:                 "healthy",
		GenerationRuns:         c.generationRuns.Load(),
		GenerationsCompleted:   completed,
		AlertsGenerated:        c.alertsGenerated.Load(),
		AlertsPersisted:        c.alertsPersisted.Load(),
		AlertsAcknowledged:     c.alertsAcknowledged.Load(),
		EventsPublished:        c.eventsPublished.Load(),
		BranchFailures:         c.branchFailures.Load(),
		Errors:                 c.errors.Load(),
		GenerationsPerSecond:   rate,
		AvgGenerationLatencyNs: avgLatencyNs,
		CustomCounters:         customCounters,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()

	c.reportMu.Lock()
	c.lastReportTime = snapshot.LastUpdated
	c.lastCompletedCount = snapshot.GenerationsCompleted
	c.reportMu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

// Reader reads reported metrics back from Redis.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a new metrics reader.
func NewReader(redisClient *redis.Client) *Reader {
	return &Reader{redis: redisClient}
}

// GetServiceMetrics retrieves the last report of a service. Stale reports are marked unhealthy.
func (r *Reader) GetServiceMetrics(ctx context.Context, serviceName string) (*ServiceMetrics, error) {
	key := MetricsKeyPrefix + serviceName
	data, err := r.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no metrics found for service: %s", serviceName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	var m ServiceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if time.Since(m.LastUpdated) > MetricsTTL {
		m.Status = "unhealthy"
	}
	return &m, nil
}
