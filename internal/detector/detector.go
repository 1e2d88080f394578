// Package detector implements the ORION aggregators. Each detector reads one
// business domain for a scope and turns the conditions it finds into alerts.
// Detectors never persist anything.
package detector

import (
	"context"
	"time"

	"orion/internal/alerts"
)

// Detector evaluates one source domain for a scope.
type Detector interface {
	// Name identifies the source in logs, metrics and branch errors.
	Name() string
	// Detect returns the alerts raised for the scope. A nil slice means nothing to report.
	Detect(ctx context.Context, scope alerts.Scope) ([]*alerts.Alert, error)
}

// Clock returns the current time. Detectors stamp alerts with it.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
