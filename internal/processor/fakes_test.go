package processor

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"orion/internal/alerts"
	"orion/internal/events"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// fakeDetector is a test fake for detector.Detector.
type fakeDetector struct {
	name          string
	alerts        []*alerts.Alert
	err           error
	waitForCancel bool
	calls         atomic.Int32
}

func (f *fakeDetector) Name() string {
	return f.name
}

func (f *fakeDetector) Detect(ctx context.Context, scope alerts.Scope) ([]*alerts.Alert, error) {
	f.calls.Add(1)
	if f.waitForCancel {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.alerts, f.err
}

// barrierDetector only returns once every detector sharing the barrier has started.
type barrierDetector struct {
	name    string
	barrier *sync.WaitGroup
}

func (b *barrierDetector) Name() string {
	return b.name
}

func (b *barrierDetector) Detect(ctx context.Context, scope alerts.Scope) ([]*alerts.Alert, error) {
	b.barrier.Done()
	released := make(chan struct{})
	go func() {
		b.barrier.Wait()
		close(released)
	}()
	select {
	case <-released:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fakeAlertStore is an in-memory AlertStore with the same dedup and acknowledgment rules as Postgres.
type fakeAlertStore struct {
	mu          sync.Mutex
	rows        []*alerts.Alert
	insertCalls int
	lastLimit   int
	insertErr   error
	listErr     error
	ackErr      error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{}
}

func (f *fakeAlertStore) InsertAlerts(ctx context.Context, batch []*alerts.Alert) ([]*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return nil, f.insertErr
	}

	var inserted []*alerts.Alert
	for _, a := range batch {
		if existing := f.active(a.TenantID, a.Fingerprint); existing != nil {
			existing.Severity = a.Severity
			existing.Title = a.Title
			existing.Description = a.Description
			existing.Recommendation = a.Recommendation
			existing.Metadata = a.Metadata
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
			continue
		}
		row := *a
		f.rows = append(f.rows, &row)
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (f *fakeAlertStore) active(tenantID, fingerprint string) *alerts.Alert {
	for _, r := range f.rows {
		if r.TenantID == tenantID && r.Fingerprint == fingerprint && r.Status == alerts.StatusActive {
			return r
		}
	}
	return nil
}

func (f *fakeAlertStore) ListActiveAlerts(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*alerts.Alert
	for _, r := range f.rows {
		if r.TenantID != scope.TenantID || r.Status != alerts.StatusActive {
			continue
		}
		if scope.AcademicYearID != nil && (r.AcademicYearID == nil || *r.AcademicYearID != *scope.AcademicYearID) {
			continue
		}
		if scope.SchoolLevelID != nil && (r.SchoolLevelID == nil || *r.SchoolLevelID != *scope.SchoolLevelID) {
			continue
		}
		row := *r
		out = append(out, &row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAlertStore) AcknowledgeAlert(ctx context.Context, alertID, tenantID, userID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return 0, f.ackErr
	}
	for _, r := range f.rows {
		if r.ID == alertID && r.TenantID == tenantID && r.Status == alerts.StatusActive {
			r.Status = alerts.StatusAcknowledged
			r.AcknowledgedAt = &at
			r.AcknowledgedBy = &userID
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeAlertStore) row(id string) *alerts.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// fakePublisher is a test fake for EventPublisher.
type fakePublisher struct {
	mu           sync.Mutex
	generated    []*events.AlertGenerated
	acknowledged []*events.AlertAcknowledged
	err          error
}

func (f *fakePublisher) PublishGenerated(ctx context.Context, e *events.AlertGenerated) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.generated = append(f.generated, e)
	return nil
}

func (f *fakePublisher) PublishAcknowledged(ctx context.Context, e *events.AlertAcknowledged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.acknowledged = append(f.acknowledged, e)
	return nil
}

// fakeMetrics is a test fake for MetricsRecorder that tracks calls.
type fakeMetrics struct {
	mu             sync.Mutex
	runs           int
	completed      int
	generated      int
	persisted      int
	sourceAlerts   map[string]int
	branchFailures []string
	acknowledged   int64
	noopAcks       int
	published      int
	errors         int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{sourceAlerts: make(map[string]int)}
}

func (f *fakeMetrics) RecordRun() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
}

func (f *fakeMetrics) RecordCompleted(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
}

func (f *fakeMetrics) RecordAlerts(generated, persisted int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated += generated
	f.persisted += persisted
}

func (f *fakeMetrics) RecordSourceAlerts(source string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sourceAlerts[source] += n
}

func (f *fakeMetrics) RecordBranchFailure(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branchFailures = append(f.branchFailures, source)
}

func (f *fakeMetrics) RecordAcknowledged(affected int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if affected == 0 {
		f.noopAcks++
		return
	}
	f.acknowledged += affected
}

func (f *fakeMetrics) RecordPublished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
}

func (f *fakeMetrics) RecordError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func newTestAlert(tenantID, subject string, severity alerts.Severity, created time.Time) *alerts.Alert {
	return alerts.NewAlert(alerts.Scope{TenantID: tenantID}, alerts.Draft{
		AlertType: alerts.TypeQHSE,
		Severity:  severity,
		Title:     subject,
		Subject:   subject,
	}, created)
}
