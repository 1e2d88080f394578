package detector

import (
	"context"
	"sync"
	"time"

	"orion/internal/alerts"
	"orion/internal/sources"
)

var fixedNow = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }

// fakeIncidentStore is a test fake for sources.IncidentStore.
type fakeIncidentStore struct {
	open        []sources.Incident
	patterns    []sources.IncidentPattern
	openErr     error
	patternsErr error

	mu        sync.Mutex
	lastLimit int
	scopes    []alerts.Scope
}

func (f *fakeIncidentStore) FindCriticalOpenIncidents(ctx context.Context, scope alerts.Scope, limit int) ([]sources.Incident, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.open, nil
}

func (f *fakeIncidentStore) GroupRepeatedCriticalIncidents(ctx context.Context, scope alerts.Scope) ([]sources.IncidentPattern, error) {
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()
	if f.patternsErr != nil {
		return nil, f.patternsErr
	}
	return f.patterns, nil
}

// fakeRiskStore is a test fake for sources.RiskStore.
type fakeRiskStore struct {
	risks []sources.Risk
	err   error
}

func (f *fakeRiskStore) FindHighOrCriticalActiveRisks(ctx context.Context, scope alerts.Scope) ([]sources.Risk, error) {
	return f.risks, f.err
}

// fakeObjectiveStore is a test fake for sources.ObjectiveStore.
type fakeObjectiveStore struct {
	objectives []sources.Objective
	err        error
}

func (f *fakeObjectiveStore) FindTrackedObjectives(ctx context.Context, scope alerts.Scope) ([]sources.Objective, error) {
	return f.objectives, f.err
}

// fakeSnapshotStore is a test fake for sources.SnapshotStore keyed by SnapshotKey.String().
type fakeSnapshotStore struct {
	values map[string]float64
	err    error

	mu      sync.Mutex
	lookups int
}

func (f *fakeSnapshotStore) FindLatestSnapshot(ctx context.Context, tenantID string, key sources.SnapshotKey) (*sources.Snapshot, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[key.String()]
	if !ok {
		return nil, nil
	}
	return &sources.Snapshot{KpiID: key.KpiID, AcademicYearID: key.AcademicYearID, SchoolLevelID: key.SchoolLevelID, Value: v, CalculatedAt: fixedNow}, nil
}

// fakeBatchSnapshotStore adds the batch lookup to fakeSnapshotStore.
type fakeBatchSnapshotStore struct {
	fakeSnapshotStore
	batchCalls int
	batchKeys  []sources.SnapshotKey
}

func (f *fakeBatchSnapshotStore) FindLatestSnapshots(ctx context.Context, tenantID string, keys []sources.SnapshotKey) (map[string]*sources.Snapshot, error) {
	f.batchCalls++
	f.batchKeys = keys
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*sources.Snapshot)
	for _, k := range keys {
		if v, ok := f.values[k.String()]; ok {
			out[k.String()] = &sources.Snapshot{KpiID: k.KpiID, Value: v, CalculatedAt: fixedNow}
		}
	}
	return out, nil
}

func objective(id, kpiID string, target float64, category string) sources.Objective {
	return sources.Objective{
		ID:             id,
		TenantID:       "tenant-1",
		KpiID:          kpiID,
		AcademicYearID: strPtr("year-2026"),
		TargetValue:    target,
		Period:         "ANNUAL",
		Status:         sources.ObjectiveStatusActive,
		KpiCode:        "CODE_" + kpiID,
		KpiName:        "KPI " + kpiID,
		KpiCategory:    strPtr(category),
	}
}
