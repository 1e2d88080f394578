package detector

import (
	"context"
	"fmt"
	"strings"

	"orion/internal/alerts"
	"orion/internal/sources"

	"golang.org/x/sync/errgroup"
)

const (
	// OpenIncidentLimit caps the open critical incidents carried by one alert.
	OpenIncidentLimit = 10
	// RepeatThreshold is the count a (type, category) group must exceed to be a pattern.
	RepeatThreshold = 2

	subjectOpenIncidents    = "incidents.open"
	subjectIncidentPatterns = "incidents.patterns"

	openIncidentsRecommendation = "Review each open critical incident, assign an owner and confirm that corrective actions are underway."
	patternsRecommendation      = "Run a root cause analysis on the repeated incident types and reinforce the related preventive controls."
)

// IncidentDetector raises QHSE alerts from critical incidents.
type IncidentDetector struct {
	store sources.IncidentStore
	now   Clock
}

// NewIncidentDetector creates an incident detector reading from store.
func NewIncidentDetector(store sources.IncidentStore, clock Clock) *IncidentDetector {
	return &IncidentDetector{store: store, now: orNow(clock)}
}

// Name returns the source name.
func (d *IncidentDetector) Name() string { return "incidents" }

// Detect emits at most two alerts: one CRITICAL alert for open critical incidents
// and one WARNING alert bundling every repeated (type, category) pattern.
func (d *IncidentDetector) Detect(ctx context.Context, scope alerts.Scope) ([]*alerts.Alert, error) {
	var (
		open     []sources.Incident
		patterns []sources.IncidentPattern
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		open, err = d.store.FindCriticalOpenIncidents(gCtx, scope, OpenIncidentLimit)
		if err != nil {
			return fmt.Errorf("failed to find critical open incidents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		patterns, err = d.store.GroupRepeatedCriticalIncidents(gCtx, scope)
		if err != nil {
			return fmt.Errorf("failed to group critical incidents: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := d.now()
	var out []*alerts.Alert
	if len(open) > 0 {
		out = append(out, alerts.NewAlert(scope, openIncidentsDraft(open), now))
	}
	if repeated := keepRepeated(patterns); len(repeated) > 0 {
		out = append(out, alerts.NewAlert(scope, patternsDraft(repeated), now))
	}
	return out, nil
}

func keepRepeated(patterns []sources.IncidentPattern) []sources.IncidentPattern {
	var kept []sources.IncidentPattern
	for _, p := range patterns {
		if p.Count > RepeatThreshold {
			kept = append(kept, p)
		}
	}
	return kept
}

func openIncidentsDraft(open []sources.Incident) alerts.Draft {
	refs := make([]alerts.IncidentRef, 0, len(open))
	titles := make([]string, 0, len(open))
	for _, inc := range open {
		refs = append(refs, alerts.IncidentRef{
			ID:        inc.ID,
			Title:     inc.Title,
			Type:      inc.Type,
			Category:  inc.Category,
			Status:    inc.Status,
			CreatedAt: inc.CreatedAt,
		})
		titles = append(titles, inc.Title)
	}

	return alerts.Draft{
		AlertType: alerts.TypeQHSE,
		Severity:  alerts.SeverityCritical,
		Title:     fmt.Sprintf("%d critical incident(s) open", len(open)),
		Description: fmt.Sprintf("%d critical incident(s) are open or in progress: %s.",
			len(open), strings.Join(titles, "; ")),
		Recommendation: openIncidentsRecommendation,
		Evidence:       alerts.OpenIncidentsEvidence{Count: len(refs), Incidents: refs},
		Subject:        subjectOpenIncidents,
	}
}

func patternsDraft(patterns []sources.IncidentPattern) alerts.Draft {
	refs := make([]alerts.PatternRef, 0, len(patterns))
	parts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		refs = append(refs, alerts.PatternRef{Type: p.Type, Category: p.Category, Count: p.Count})
		parts = append(parts, fmt.Sprintf("%s/%s (%d)", p.Type, p.Category, p.Count))
	}

	return alerts.Draft{
		AlertType:      alerts.TypeQHSE,
		Severity:       alerts.SeverityWarning,
		Title:          "Repeated critical incident patterns detected",
		Description:    "Critical incidents keep recurring for: " + strings.Join(parts, ", ") + ".",
		Recommendation: patternsRecommendation,
		Evidence:       alerts.IncidentPatternsEvidence{Patterns: refs},
		Subject:        subjectIncidentPatterns,
	}
}
