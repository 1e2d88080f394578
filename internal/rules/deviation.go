// Package rules holds the pure evaluation rules used by the detectors.
package rules

import (
	"math"

	"orion/internal/alerts"
)

const (
	// OffTrackThreshold is the absolute percentage gap above which a KPI is off track.
	OffTrackThreshold = 10.0
	// CriticalThreshold is the absolute percentage gap above which an off-track KPI is critical.
	CriticalThreshold = 20.0
)

// DeviationInput is a measured value against its objective.
type DeviationInput struct {
	Target        float64
	Actual        float64
	MinAcceptable *float64
	MaxAcceptable *float64
}

// Deviation is the classification of a DeviationInput.
// Severity is zero when the value is on track.
type Deviation struct {
	IsOffTrack    bool
	Severity      alerts.Severity
	Gap           float64
	PercentageGap float64
}

// Classify decides whether a deviation is alert-worthy and at what severity.
// A zero target yields a zero percentage gap, leaving the bounds as the only trigger.
func Classify(in DeviationInput) Deviation {
	gap := in.Actual - in.Target
	var pct float64
	if in.Target != 0 {
		pct = gap * 100 / in.Target
	}

	absPct := math.Abs(pct)
	offTrack := (in.MinAcceptable != nil && in.Actual < *in.MinAcceptable) ||
		(in.MaxAcceptable != nil && in.Actual > *in.MaxAcceptable) ||
		absPct > OffTrackThreshold

	d := Deviation{IsOffTrack: offTrack, Gap: gap, PercentageGap: pct}
	if !offTrack {
		return d
	}
	d.Severity = alerts.SeverityWarning
	if absPct > CriticalThreshold {
		d.Severity = alerts.SeverityCritical
	}
	return d
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
