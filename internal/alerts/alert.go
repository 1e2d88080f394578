package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlertType is the business domain an alert belongs to.
type AlertType string

const (
	TypePedagogical AlertType = "PEDAGOGICAL"
	TypeFinancial   AlertType = "FINANCIAL"
	TypeQHSE        AlertType = "QHSE"
	TypeRH          AlertType = "RH"
	TypeOperational AlertType = "OPERATIONAL"
	TypeStrategic   AlertType = "STRATEGIC"
)

// Status is the acknowledgment state of an alert.
type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusAcknowledged Status = "ACKNOWLEDGED"
)

// CanTransition reports whether an alert may move from one status to another.
// ACTIVE -> ACKNOWLEDGED is the only transition.
func CanTransition(from, to Status) bool {
	return from == StatusActive && to == StatusAcknowledged
}

// ErrInvalidScope is returned when a scope has no tenant.
var ErrInvalidScope = errors.New("tenant id is required")

// Scope filters every query by tenant and optionally by academic year and school level.
type Scope struct {
	TenantID       string  `json:"tenantId"`
	AcademicYearID *string `json:"academicYearId,omitempty"`
	SchoolLevelID  *string `json:"schoolLevelId,omitempty"`
}

// Validate ensures the scope is tenant-bound.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.TenantID) == "" {
		return ErrInvalidScope
	}
	return nil
}

// Alert is a persisted ORION alert. JSON names are consumed by dashboards and must not change.
type Alert struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	AcademicYearID *string    `json:"academicYearId"`
	SchoolLevelID  *string    `json:"-"`
	AlertType      AlertType  `json:"alertType"`
	Severity       Severity   `json:"severity"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Recommendation string     `json:"recommendation"`
	Status         Status     `json:"status"`
	Metadata       Evidence   `json:"metadata"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt"`
	AcknowledgedBy *string    `json:"acknowledgedBy"`
	CreatedAt      time.Time  `json:"createdAt"`

	// Fingerprint identifies the condition an alert reports, for deduplication of ACTIVE alerts.
	Fingerprint string `json:"-"`
}

// Draft holds the detector-provided content of a new alert.
type Draft struct {
	AlertType      AlertType
	Severity       Severity
	Title          string
	Description    string
	Recommendation string
	Evidence       Evidence
	// Subject names the condition within the tenant scope, e.g. "kpi.<objectiveId>".
	Subject string
}

// NewAlert builds an ACTIVE alert for the scope from a draft.
func NewAlert(scope Scope, d Draft, now time.Time) *Alert {
	return &Alert{
		ID:             uuid.NewString(),
		TenantID:       scope.TenantID,
		AcademicYearID: scope.AcademicYearID,
		SchoolLevelID:  scope.SchoolLevelID,
		AlertType:      d.AlertType,
		Severity:       d.Severity,
		Title:          d.Title,
		Description:    d.Description,
		Recommendation: d.Recommendation,
		Status:         StatusActive,
		Metadata:       d.Evidence,
		CreatedAt:      now.UTC(),
		Fingerprint:    Fingerprint(scope, d.AlertType, d.Subject),
	}
}

// Fingerprint derives a stable identifier for a condition within its full scope.
// Severity is left out so that an escalating condition keeps the same ACTIVE alert.
func Fingerprint(scope Scope, alertType AlertType, subject string) string {
	parts := []string{
		strconv.Quote(scope.TenantID),
		optionalPart(scope.AcademicYearID),
		optionalPart(scope.SchoolLevelID),
		strconv.Quote(string(alertType)),
		strconv.Quote(subject),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// optionalPart keeps a nil id distinct from an empty one.
func optionalPart(s *string) string {
	if s == nil {
		return "-"
	}
	return strconv.Quote(*s)
}
