package database

import (
	"context"
	"database/sql"
	"fmt"

	"orion/internal/alerts"
	"orion/internal/sources"

	"github.com/lib/pq"
)

// Compile-time checks that DB serves every collaborator interface.
var (
	_ sources.IncidentStore      = (*DB)(nil)
	_ sources.RiskStore          = (*DB)(nil)
	_ sources.ObjectiveStore     = (*DB)(nil)
	_ sources.BatchSnapshotStore = (*DB)(nil)
)

// FindCriticalOpenIncidents returns up to limit critical OPEN or IN_PROGRESS incidents, newest first.
func (db *DB) FindCriticalOpenIncidents(ctx context.Context, scope alerts.Scope, limit int) ([]sources.Incident, error) {
	query := `
		SELECT id, title, type, category, gravity, status, created_at
		FROM qhs_incidents
		WHERE tenant_id = $1
			AND gravity = $2
			AND status = ANY($3)
			AND ($4::text IS NULL OR academic_year_id::text = $4)
			AND ($5::text IS NULL OR school_level_id::text = $5)
		ORDER BY created_at DESC
		LIMIT $6
	`

	rows, err := db.conn.QueryContext(ctx, query,
		scope.TenantID,
		sources.GravityCritical,
		pq.Array([]string{sources.IncidentStatusOpen, sources.IncidentStatusInProgress}),
		toNullString(scope.AcademicYearID),
		toNullString(scope.SchoolLevelID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query critical incidents: %w", err)
	}
	defer rows.Close()

	var out []sources.Incident
	for rows.Next() {
		var inc sources.Incident
		if err := rows.Scan(&inc.ID, &inc.Title, &inc.Type, &inc.Category, &inc.Gravity, &inc.Status, &inc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}
	return out, nil
}

// GroupRepeatedCriticalIncidents counts critical incidents per (type, category), whatever their status,
// and keeps the groups seen more than twice.
func (db *DB) GroupRepeatedCriticalIncidents(ctx context.Context, scope alerts.Scope) ([]sources.IncidentPattern, error) {
	query := `
		SELECT type, category, COUNT(*) AS occurrences
		FROM qhs_incidents
		WHERE tenant_id = $1
			AND gravity = $2
			AND ($3::text IS NULL OR academic_year_id::text = $3)
			AND ($4::text IS NULL OR school_level_id::text = $4)
		GROUP BY type, category
		HAVING COUNT(*) > 2
		ORDER BY occurrences DESC, type, category
	`

	rows, err := db.conn.QueryContext(ctx, query,
		scope.TenantID,
		sources.GravityCritical,
		toNullString(scope.AcademicYearID),
		toNullString(scope.SchoolLevelID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group critical incidents: %w", err)
	}
	defer rows.Close()

	var out []sources.IncidentPattern
	for rows.Next() {
		var p sources.IncidentPattern
		if err := rows.Scan(&p.Type, &p.Category, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan incident pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incident patterns: %w", err)
	}
	return out, nil
}

// FindHighOrCriticalActiveRisks returns HIGH and CRITICAL risks that are ACTIVE or UNDER_SURVEILLANCE,
// CRITICAL first.
func (db *DB) FindHighOrCriticalActiveRisks(ctx context.Context, scope alerts.Scope) ([]sources.Risk, error) {
	query := `
		SELECT id, code, title, level, status, probability, impact
		FROM qhs_risk_registers
		WHERE tenant_id = $1
			AND level = ANY($2)
			AND status = ANY($3)
			AND ($4::text IS NULL OR academic_year_id::text = $4)
			AND ($5::text IS NULL OR school_level_id::text = $5)
		ORDER BY CASE level WHEN 'CRITICAL' THEN 2 WHEN 'HIGH' THEN 1 ELSE 0 END DESC,
			probability * impact DESC, code
	`

	rows, err := db.conn.QueryContext(ctx, query,
		scope.TenantID,
		pq.Array([]string{sources.RiskLevelHigh, sources.RiskLevelCritical}),
		pq.Array([]string{sources.RiskStatusActive, sources.RiskStatusUnderSurveillance}),
		toNullString(scope.AcademicYearID),
		toNullString(scope.SchoolLevelID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query risks: %w", err)
	}
	defer rows.Close()

	var out []sources.Risk
	for rows.Next() {
		var r sources.Risk
		if err := rows.Scan(&r.ID, &r.Code, &r.Title, &r.Level, &r.Status, &r.Probability, &r.Impact); err != nil {
			return nil, fmt.Errorf("failed to scan risk: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risks: %w", err)
	}
	return out, nil
}

// FindTrackedObjectives returns ACTIVE, AT_RISK and OFF_TRACK objectives joined with their KPI.
func (db *DB) FindTrackedObjectives(ctx context.Context, scope alerts.Scope) ([]sources.Objective, error) {
	query := `
		SELECT o.id, o.tenant_id, o.kpi_id, o.academic_year_id, o.school_level_id, o.target_value,
			o.min_acceptable, o.max_acceptable, o.period, o.status, k.code, k.name, k.category, k.unit
		FROM kpi_objectives o
		JOIN kpis k ON k.id = o.kpi_id
		WHERE o.tenant_id = $1
			AND o.status = ANY($2)
			AND ($3::text IS NULL OR o.academic_year_id::text = $3)
			AND ($4::text IS NULL OR o.school_level_id::text = $4)
		ORDER BY k.code, o.id
	`

	rows, err := db.conn.QueryContext(ctx, query,
		scope.TenantID,
		pq.Array([]string{sources.ObjectiveStatusActive, sources.ObjectiveStatusAtRisk, sources.ObjectiveStatusOffTrack}),
		toNullString(scope.AcademicYearID),
		toNullString(scope.SchoolLevelID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query objectives: %w", err)
	}
	defer rows.Close()

	var out []sources.Objective
	for rows.Next() {
		var (
			o              sources.Objective
			academicYearID sql.NullString
			schoolLevelID  sql.NullString
			minAcceptable  sql.NullFloat64
			maxAcceptable  sql.NullFloat64
			kpiCategory    sql.NullString
			kpiUnit        sql.NullString
		)
		if err := rows.Scan(
			&o.ID,
			&o.TenantID,
			&o.KpiID,
			&academicYearID,
			&schoolLevelID,
			&o.TargetValue,
			&minAcceptable,
			&maxAcceptable,
			&o.Period,
			&o.Status,
			&o.KpiCode,
			&o.KpiName,
			&kpiCategory,
			&kpiUnit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan objective: %w", err)
		}
		o.AcademicYearID = nullableString(academicYearID)
		o.SchoolLevelID = nullableString(schoolLevelID)
		o.MinAcceptable = nullableFloat(minAcceptable)
		o.MaxAcceptable = nullableFloat(maxAcceptable)
		o.KpiCategory = nullableString(kpiCategory)
		o.KpiUnit = nullableString(kpiUnit)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate objectives: %w", err)
	}
	return out, nil
}

// FindLatestSnapshot returns the most recently calculated snapshot for the key, or nil if none exists.
// A nil academic year or school level only matches snapshots recorded without one.
func (db *DB) FindLatestSnapshot(ctx context.Context, tenantID string, key sources.SnapshotKey) (*sources.Snapshot, error) {
	query := `
		SELECT kpi_id, academic_year_id, school_level_id, value, calculated_at
		FROM kpi_snapshots
		WHERE tenant_id = $1
			AND kpi_id = $2
			AND academic_year_id IS NOT DISTINCT FROM $3
			AND school_level_id IS NOT DISTINCT FROM $4
		ORDER BY calculated_at DESC
		LIMIT 1
	`

	rows, err := db.conn.QueryContext(ctx, query,
		tenantID,
		key.KpiID,
		toNullString(key.AcademicYearID),
		toNullString(key.SchoolLevelID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
		}
		return nil, nil
	}
	return scanSnapshot(rows)
}

// FindLatestSnapshots resolves the latest snapshot of many keys in one query.
// The result is keyed by SnapshotKey.String(); keys without snapshots are absent.
func (db *DB) FindLatestSnapshots(ctx context.Context, tenantID string, keys []sources.SnapshotKey) (map[string]*sources.Snapshot, error) {
	out := make(map[string]*sources.Snapshot, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	kpiIDs := make([]string, len(keys))
	years := make([]sql.NullString, len(keys))
	levels := make([]sql.NullString, len(keys))
	for i, k := range keys {
		kpiIDs[i] = k.KpiID
		years[i] = toNullString(k.AcademicYearID)
		levels[i] = toNullString(k.SchoolLevelID)
	}

	query := `
		SELECT DISTINCT ON (s.kpi_id, s.academic_year_id, s.school_level_id)
			s.kpi_id, s.academic_year_id, s.school_level_id, s.value, s.calculated_at
		FROM kpi_snapshots s
		JOIN unnest($2::text[], $3::text[], $4::text[]) AS k(kpi_id, academic_year_id, school_level_id)
			ON s.kpi_id::text = k.kpi_id
			AND s.academic_year_id::text IS NOT DISTINCT FROM k.academic_year_id
			AND s.school_level_id::text IS NOT DISTINCT FROM k.school_level_id
		WHERE s.tenant_id = $1
		ORDER BY s.kpi_id, s.academic_year_id, s.school_level_id, s.calculated_at DESC
	`

	rows, err := db.conn.QueryContext(ctx, query, tenantID, pq.Array(kpiIDs), pq.Array(years), pq.Array(levels))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out[snap.Key().String()] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return out, nil
}

func scanSnapshot(rows *sql.Rows) (*sources.Snapshot, error) {
	var (
		s              sources.Snapshot
		academicYearID sql.NullString
		schoolLevelID  sql.NullString
	)
	if err := rows.Scan(&s.KpiID, &academicYearID, &schoolLevelID, &s.Value, &s.CalculatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	s.AcademicYearID = nullableString(academicYearID)
	s.SchoolLevelID = nullableString(schoolLevelID)
	return &s, nil
}
