package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orion/internal/alerts"
	"orion/internal/detector"
	"orion/internal/events"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxActiveAlerts caps every active alert listing. It is also the default limit.
	MaxActiveAlerts = 50
	// DefaultGenerateTimeout bounds one generation run, detectors and insert included.
	DefaultGenerateTimeout = 30 * time.Second
)

// ErrInvalidAcknowledgment is returned when an acknowledgment names no alert or no user.
var ErrInvalidAcknowledgment = errors.New("alert id and user id are required")

// BranchError reports a detector that failed during a generation run.
type BranchError struct {
	Source string
	Err    error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("%s detector failed: %v", e.Source, e.Err)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}

// GenerateResult is the outcome of a generation run.
type GenerateResult struct {
	// Alerts holds every alert the surviving detectors produced. Once persisted, an alert matching an
	// ACTIVE one carries that row's id and creation time.
	Alerts []*alerts.Alert
	// Inserted counts alerts that became new rows. The others refreshed an existing ACTIVE row.
	Inserted int
	// Failures lists the detectors that failed. Their alerts are missing from Alerts.
	Failures []*BranchError
}

// Err joins the branch failures, or returns nil when every detector succeeded.
func (r *GenerateResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Processor orchestrates detectors and the alert lifecycle.
type Processor struct {
	detectors []detector.Detector
	store     AlertStore
	publisher EventPublisher
	metrics   MetricsRecorder
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics sets the metrics recorder. A nil recorder keeps the no-op default.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithPublisher sets the lifecycle event publisher. A nil publisher disables events.
func WithPublisher(pub EventPublisher) Option {
	return func(p *Processor) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithTimeout bounds each generation run. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.timeout = d
	}
}

// WithClock sets the time source used for acknowledgment stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a processor running the given detectors against the store.
func New(store AlertStore, detectors []detector.Detector, opts ...Option) *Processor {
	p := &Processor{
		detectors: detectors,
		store:     store,
		publisher: noopPublisher{},
		metrics:   NoopMetrics(),
		timeout:   DefaultGenerateTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateAllAlerts runs every detector concurrently for the scope, merges their alerts and
// persists them as one batch. A failing detector is reported in the result's Failures and does
// not suppress the others. The returned error is non-nil for an invalid scope, an expired
// context, or a failed insert; in the last case the result still carries the generated alerts.
func (p *Processor) GenerateAllAlerts(ctx context.Context, scope alerts.Scope) (*GenerateResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	p.metrics.RecordRun()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	found := make([][]*alerts.Alert, len(p.detectors))
	failed := make([]error, len(p.detectors))

	// Plain group, not WithContext: one failing branch must not cancel its siblings.
	var g errgroup.Group
	for i, d := range p.detectors {
		g.Go(func() error {
			out, err := d.Detect(ctx, scope)
			if err != nil {
				failed[i] = err
				return nil
			}
			found[i] = out
			return nil
		})
	}
	_ = g.Wait()

	result := &GenerateResult{Alerts: make([]*alerts.Alert, 0)}
	for i, d := range p.detectors {
		if err := failed[i]; err != nil {
			slog.Error("Failed to run detector",
				"source", d.Name(),
				"tenant_id", scope.TenantID,
				"error", err,
			)
			p.metrics.RecordBranchFailure(d.Name())
			result.Failures = append(result.Failures, &BranchError{Source: d.Name(), Err: err})
			continue
		}
		p.metrics.RecordSourceAlerts(d.Name(), len(found[i]))
		result.Alerts = append(result.Alerts, found[i]...)
	}

	if err := ctx.Err(); err != nil {
		p.metrics.RecordError()
		return result, fmt.Errorf("failed to generate alerts: %w", err)
	}

	if len(result.Alerts) == 0 {
		p.metrics.RecordAlerts(0, 0)
		p.metrics.RecordCompleted(time.Since(startTime))
		slog.Debug("No alerts generated",
			"tenant_id", scope.TenantID,
			"failed_sources", len(result.Failures),
		)
		return result, nil
	}

	inserted, err := p.store.InsertAlerts(ctx, result.Alerts)
	if err != nil {
		slog.Error("Failed to persist alerts",
			"tenant_id", scope.TenantID,
			"count", len(result.Alerts),
			"error", err,
		)
		p.metrics.RecordError()
		return result, fmt.Errorf("failed to persist alerts: %w", err)
	}
	result.Inserted = len(inserted)
	p.metrics.RecordAlerts(len(result.Alerts), len(inserted))
	if refreshed := len(result.Alerts) - len(inserted); refreshed > 0 {
		slog.Debug("Refreshed active alerts", "tenant_id", scope.TenantID, "count", refreshed)
	}

	for _, a := range inserted {
		p.publishGenerated(ctx, a)
	}

	p.metrics.RecordCompleted(time.Since(startTime))
	slog.Info("Generated alerts",
		"tenant_id", scope.TenantID,
		"generated", len(result.Alerts),
		"inserted", result.Inserted,
		"failed_sources", len(result.Failures),
		"duration", time.Since(startTime),
	)
	return result, nil
}

// GetActiveAlerts returns the scope's ACTIVE alerts, most severe and most recent first.
// A limit outside (0, MaxActiveAlerts] is replaced by MaxActiveAlerts.
func (p *Processor) GetActiveAlerts(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxActiveAlerts {
		limit = MaxActiveAlerts
	}

	list, err := p.store.ListActiveAlerts(ctx, scope, limit)
	if err != nil {
		p.metrics.RecordError()
		return nil, fmt.Errorf("failed to get active alerts: %w", err)
	}
	if list == nil {
		list = make([]*alerts.Alert, 0)
	}
	return list, nil
}

// AcknowledgeAlert marks an ACTIVE alert of the tenant as ACKNOWLEDGED by the user.
// An unknown, foreign or already acknowledged alert affects zero rows and is not an error.
func (p *Processor) AcknowledgeAlert(ctx context.Context, alertID, tenantID, userID string) (int64, error) {
	if err := (alerts.Scope{TenantID: tenantID}).Validate(); err != nil {
		return 0, err
	}
	if alertID == "" || userID == "" {
		return 0, ErrInvalidAcknowledgment
	}

	at := p.now().UTC()
	affected, err := p.store.AcknowledgeAlert(ctx, alertID, tenantID, userID, at)
	if err != nil {
		p.metrics.RecordError()
		return 0, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	p.metrics.RecordAcknowledged(affected)

	if affected == 0 {
		slog.Debug("Acknowledgment matched no active alert",
			"alert_id", alertID,
			"tenant_id", tenantID,
		)
		return 0, nil
	}

	slog.Info("Alert acknowledged",
		"alert_id", alertID,
		"tenant_id", tenantID,
		"user_id", userID,
	)
	if err := p.publisher.PublishAcknowledged(ctx, events.NewAlertAcknowledged(alertID, tenantID, userID, at)); err != nil {
		slog.Error("Failed to publish alert acknowledged event",
			"alert_id", alertID,
			"tenant_id", tenantID,
			"error", err,
		)
		p.metrics.RecordError()
	} else {
		p.metrics.RecordPublished()
	}
	return affected, nil
}

// InitializeSession runs generation for a session that is starting. It never fails: errors are
// logged and the caller gets whatever alerts were produced, possibly none.
func (p *Processor) InitializeSession(ctx context.Context, scope alerts.Scope) []*alerts.Alert {
	result, err := p.GenerateAllAlerts(ctx, scope)
	if err != nil {
		slog.Warn("Alert generation failed during session initialization",
			"tenant_id", scope.TenantID,
			"error", err,
		)
		if result == nil {
			return make([]*alerts.Alert, 0)
		}
		return result.Alerts
	}
	if len(result.Failures) > 0 {
		slog.Warn("Alert generation degraded during session initialization",
			"tenant_id", scope.TenantID,
			"error", result.Err(),
		)
	}
	return result.Alerts
}

func (p *Processor) publishGenerated(ctx context.Context, a *alerts.Alert) {
	if err := p.publisher.PublishGenerated(ctx, events.NewAlertGenerated(a)); err != nil {
		slog.Error("Failed to publish alert generated event",
			"alert_id", a.ID,
			"tenant_id", a.TenantID,
			"error", err,
		)
		p.metrics.RecordError()
		return
	}
	p.metrics.RecordPublished()
}
