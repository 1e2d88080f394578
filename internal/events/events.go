// Package events defines the alert lifecycle events published for downstream consumers.
package events

import (
	"time"

	"orion/internal/alerts"
)

// SchemaVersion is the payload version carried by every event.
const SchemaVersion = 1

// Event types, also used as the Kafka "event_type" header.
const (
	TypeAlertGenerated    = "alert.generated"
	TypeAlertAcknowledged = "alert.acknowledged"
)

// AlertGenerated is published once per newly persisted alert.
type AlertGenerated struct {
	EventType      string  `json:"event_type"`
	AlertID        string  `json:"alert_id"`
	TenantID       string  `json:"tenant_id"`
	AcademicYearID *string `json:"academic_year_id,omitempty"`
	AlertType      string  `json:"alert_type"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	CreatedAt      int64   `json:"created_at"` // Unix timestamp
	SchemaVersion  int     `json:"schema_version"`
}

// NewAlertGenerated builds the event for a persisted alert.
func NewAlertGenerated(a *alerts.Alert) *AlertGenerated {
	return &AlertGenerated{
		EventType:      TypeAlertGenerated,
		AlertID:        a.ID,
		TenantID:       a.TenantID,
		AcademicYearID: a.AcademicYearID,
		AlertType:      string(a.AlertType),
		Severity:       a.Severity.String(),
		Title:          a.Title,
		CreatedAt:      a.CreatedAt.Unix(),
		SchemaVersion:  SchemaVersion,
	}
}

// AlertAcknowledged is published when an ACTIVE alert is acknowledged.
type AlertAcknowledged struct {
	EventType      string `json:"event_type"`
	AlertID        string `json:"alert_id"`
	TenantID       string `json:"tenant_id"`
	AcknowledgedBy string `json:"acknowledged_by"`
	AcknowledgedAt int64  `json:"acknowledged_at"` // Unix timestamp
	SchemaVersion  int    `json:"schema_version"`
}

// NewAlertAcknowledged builds the event for an acknowledgment.
func NewAlertAcknowledged(alertID, tenantID, userID string, at time.Time) *AlertAcknowledged {
	return &AlertAcknowledged{
		EventType:      TypeAlertAcknowledged,
		AlertID:        alertID,
		TenantID:       tenantID,
		AcknowledgedBy: userID,
		AcknowledgedAt: at.Unix(),
		SchemaVersion:  SchemaVersion,
	}
}
