// Package sources defines the read-only collaborator data the detectors consume.
// The engine never writes to any of these stores.
package sources

import (
	"context"
	"strconv"
	"time"

	"orion/internal/alerts"
)

// Incident gravity and status values read by the incident detector.
const (
	GravityCritical = "CRITICAL"

	IncidentStatusOpen       = "OPEN"
	IncidentStatusInProgress = "IN_PROGRESS"
)

// Risk levels and statuses read by the risk detector.
const (
	RiskLevelHigh     = "HIGH"
	RiskLevelCritical = "CRITICAL"

	RiskStatusActive            = "ACTIVE"
	RiskStatusUnderSurveillance = "UNDER_SURVEILLANCE"
)

// Objective statuses considered tracked.
const (
	ObjectiveStatusActive   = "ACTIVE"
	ObjectiveStatusAtRisk   = "AT_RISK"
	ObjectiveStatusOffTrack = "OFF_TRACK"
)

// Incident is a QHS incident record.
type Incident struct {
	ID        string
	Title     string
	Type      string
	Category  string
	Gravity   string
	Status    string
	CreatedAt time.Time
}

// IncidentPattern is a (type, category) group of critical incidents.
type IncidentPattern struct {
	Type     string
	Category string
	Count    int
}

// Risk is a risk register entry.
type Risk struct {
	ID          string
	Code        string
	Title       string
	Level       string
	Status      string
	Probability int
	Impact      int
}

// Objective is a KPI objective joined with the KPI it targets.
type Objective struct {
	ID             string
	TenantID       string
	KpiID          string
	AcademicYearID *string
	SchoolLevelID  *string
	TargetValue    float64
	MinAcceptable  *float64
	MaxAcceptable  *float64
	Period         string
	Status         string

	KpiCode     string
	KpiName     string
	KpiCategory *string
	KpiUnit     *string
}

// SnapshotKey returns the scope under which the objective's snapshots are recorded.
func (o *Objective) SnapshotKey() SnapshotKey {
	return SnapshotKey{KpiID: o.KpiID, AcademicYearID: o.AcademicYearID, SchoolLevelID: o.SchoolLevelID}
}

// SnapshotKey identifies a snapshot series within a tenant.
// A nil school level matches only snapshots recorded without one.
type SnapshotKey struct {
	KpiID          string
	AcademicYearID *string
	SchoolLevelID  *string
}

// String renders the key for map lookups and logging. A nil id and an empty one render differently.
func (k SnapshotKey) String() string {
	return strconv.Quote(k.KpiID) + "|" + keyPart(k.AcademicYearID) + "|" + keyPart(k.SchoolLevelID)
}

func keyPart(s *string) string {
	if s == nil {
		return "-"
	}
	return strconv.Quote(*s)
}

// Snapshot is a measured KPI value.
type Snapshot struct {
	KpiID          string
	AcademicYearID *string
	SchoolLevelID  *string
	Value          float64
	CalculatedAt   time.Time
}

// Key returns the series key the snapshot belongs to.
func (s *Snapshot) Key() SnapshotKey {
	return SnapshotKey{KpiID: s.KpiID, AcademicYearID: s.AcademicYearID, SchoolLevelID: s.SchoolLevelID}
}

// IncidentStore reads QHS incidents.
type IncidentStore interface {
	// FindCriticalOpenIncidents returns up to limit critical OPEN or IN_PROGRESS incidents, newest first.
	FindCriticalOpenIncidents(ctx context.Context, scope alerts.Scope, limit int) ([]Incident, error)
	// GroupRepeatedCriticalIncidents groups critical incidents by (type, category), keeping counts above two.
	GroupRepeatedCriticalIncidents(ctx context.Context, scope alerts.Scope) ([]IncidentPattern, error)
}

// RiskStore reads the risk register.
type RiskStore interface {
	// FindHighOrCriticalActiveRisks returns unmitigated HIGH and CRITICAL risks, highest level first.
	FindHighOrCriticalActiveRisks(ctx context.Context, scope alerts.Scope) ([]Risk, error)
}

// ObjectiveStore reads KPI objectives.
type ObjectiveStore interface {
	// FindTrackedObjectives returns objectives in status ACTIVE, AT_RISK or OFF_TRACK.
	FindTrackedObjectives(ctx context.Context, scope alerts.Scope) ([]Objective, error)
}

// SnapshotStore reads KPI snapshots.
type SnapshotStore interface {
	// FindLatestSnapshot returns the most recently calculated snapshot for the key, or nil if none exists.
	FindLatestSnapshot(ctx context.Context, tenantID string, key SnapshotKey) (*Snapshot, error)
}

// BatchSnapshotStore is implemented by snapshot stores that can resolve many keys in one query.
type BatchSnapshotStore interface {
	SnapshotStore
	// FindLatestSnapshots returns the latest snapshot per key. Keys without snapshots are absent from the map.
	FindLatestSnapshots(ctx context.Context, tenantID string, keys []SnapshotKey) (map[string]*Snapshot, error)
}
