package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orion/internal/alerts"

	"github.com/lib/pq"
)

// marshalEvidence serializes alert evidence for JSONB storage.
// Nil evidence is stored as NULL.
func marshalEvidence(e alerts.Evidence) (sql.NullString, error) {
	if e == nil {
		return sql.NullString{}, nil
	}
	data, err := alerts.EncodeEvidence(e)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// InsertAlerts persists a batch of alerts in a single transaction.
// An alert whose fingerprint already has an ACTIVE row for the tenant refreshes that row (severity, texts
// and metadata) instead of creating a new one, and takes over the row's id and creation time so callers
// only ever see persisted ids. Returns the alerts that became new rows. Any failure rolls back the whole batch.
func (db *DB) InsertAlerts(ctx context.Context, batch []*alerts.Alert) ([]*alerts.Alert, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// xmax is zero only for a freshly inserted tuple.
	query := `
		INSERT INTO orion_alerts (id, tenant_id, academic_year_id, school_level_id, alert_type, severity, title,
			description, recommendation, status, metadata, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, fingerprint) WHERE status = 'ACTIVE' DO UPDATE
		SET severity = EXCLUDED.severity,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			recommendation = EXCLUDED.recommendation,
			metadata = EXCLUDED.metadata
		RETURNING id, created_at, (xmax = 0) AS inserted
	`

	var inserted []*alerts.Alert
	for _, a := range batch {
		if a.Status != alerts.StatusActive {
			return nil, fmt.Errorf("alert %s must be created ACTIVE, got %s", a.ID, a.Status)
		}
		metadata, err := marshalEvidence(a.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata for alert %s: %w", a.ID, err)
		}

		var (
			id        string
			createdAt time.Time
			isNew     bool
		)
		err = tx.QueryRowContext(ctx, query,
			a.ID,
			a.TenantID,
			toNullString(a.AcademicYearID),
			toNullString(a.SchoolLevelID),
			string(a.AlertType),
			a.Severity,
			a.Title,
			a.Description,
			a.Recommendation,
			string(a.Status),
			metadata,
			a.Fingerprint,
			a.CreatedAt,
		).Scan(&id, &createdAt, &isNew)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
				return nil, fmt.Errorf("alert already exists: %s", a.ID)
			}
			return nil, fmt.Errorf("failed to insert alert: %w", err)
		}

		if !isNew {
			slog.Debug("Active alert already exists, refreshed",
				"tenant_id", a.TenantID,
				"alert_id", id,
				"alert_type", a.AlertType,
				"severity", a.Severity,
			)
			a.ID = id
			a.CreatedAt = createdAt.UTC()
			continue
		}
		inserted = append(inserted, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit alerts: %w", err)
	}
	return inserted, nil
}

// ListActiveAlerts returns the tenant's ACTIVE alerts, most severe first, then newest first.
// A nil academic year or school level in scope matches every year or level.
func (db *DB) ListActiveAlerts(ctx context.Context, scope alerts.Scope, limit int) ([]*alerts.Alert, error) {
	query := `
		SELECT id, tenant_id, academic_year_id, school_level_id, alert_type, severity, title, description,
			recommendation, status, metadata, acknowledged_at, acknowledged_by, created_at, fingerprint
		FROM orion_alerts
		WHERE tenant_id = $1
			AND status = 'ACTIVE'
			AND ($2::text IS NULL OR academic_year_id = $2)
			AND ($3::text IS NULL OR school_level_id = $3)
		ORDER BY CASE severity WHEN 'CRITICAL' THEN 3 WHEN 'WARNING' THEN 2 WHEN 'INFO' THEN 1 ELSE 0 END DESC,
			created_at DESC
		LIMIT $4
	`

	rows, err := db.conn.QueryContext(ctx, query,
		scope.TenantID,
		toNullString(scope.AcademicYearID),
		toNullString(scope.SchoolLevelID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer rows.Close()

	var out []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active alerts: %w", err)
	}
	return out, nil
}

func scanAlert(rows *sql.Rows) (*alerts.Alert, error) {
	var (
		a              alerts.Alert
		academicYearID sql.NullString
		schoolLevelID  sql.NullString
		alertType      string
		status         string
		metadata       sql.NullString
		acknowledgedAt sql.NullTime
		acknowledgedBy sql.NullString
	)
	if err := rows.Scan(
		&a.ID,
		&a.TenantID,
		&academicYearID,
		&schoolLevelID,
		&alertType,
		&a.Severity,
		&a.Title,
		&a.Description,
		&a.Recommendation,
		&status,
		&metadata,
		&acknowledgedAt,
		&acknowledgedBy,
		&a.CreatedAt,
		&a.Fingerprint,
	); err != nil {
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}

	a.AcademicYearID = nullableString(academicYearID)
	a.SchoolLevelID = nullableString(schoolLevelID)
	a.AlertType = alerts.AlertType(alertType)
	a.Status = alerts.Status(status)
	a.AcknowledgedBy = nullableString(acknowledgedBy)
	if acknowledgedAt.Valid {
		at := acknowledgedAt.Time
		a.AcknowledgedAt = &at
	}
	if metadata.Valid {
		evidence, err := alerts.DecodeEvidence([]byte(metadata.String))
		if err != nil {
			slog.Warn("Failed to decode alert metadata", "alert_id", a.ID, "error", err)
		} else {
			a.Metadata = evidence
		}
	}
	return &a, nil
}

// AcknowledgeAlert moves an ACTIVE alert of the tenant to ACKNOWLEDGED and stamps the user and time.
// It returns the number of affected rows. Unknown, foreign or already acknowledged alerts affect zero rows
// and are not an error.
func (db *DB) AcknowledgeAlert(ctx context.Context, alertID, tenantID, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE orion_alerts
		SET status = 'ACKNOWLEDGED', acknowledged_at = $4, acknowledged_by = $3
		WHERE id = $1 AND tenant_id = $2 AND status = 'ACTIVE'
	`

	result, err := db.conn.ExecContext(ctx, query, alertID, tenantID, userID, at)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" { // invalid_text_representation: not a UUID
			slog.Debug("Ignoring acknowledgment of malformed alert id", "alert_id", alertID, "tenant_id", tenantID)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}
