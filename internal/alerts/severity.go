// Package alerts defines the ORION alert record and its classification types.
package alerts

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is an ordered alert severity. Higher values are more severe.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
	SeverityCritical
)

// String returns the wire label of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNSPECIFIED"
	}
}

// ParseSeverity converts a wire label into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return SeverityInfo, nil
	case "WARNING":
		return SeverityWarning, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity: %q", s)
	}
}

// MarshalJSON encodes the severity as its label.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity label.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseSeverity(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the severity as text.
func (s Severity) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan reads a severity stored as text.
func (s *Severity) Scan(src any) error {
	var label string
	switch v := src.(type) {
	case string:
		label = v
	case []byte:
		label = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Severity", src)
	}
	parsed, err := ParseSeverity(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
