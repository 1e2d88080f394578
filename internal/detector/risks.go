package detector

import (
	"context"
	"fmt"

	"orion/internal/alerts"
	"orion/internal/sources"
)

const (
	subjectRiskExposure = "risks.exposure"

	riskRecommendation = "Review the mitigation plan of each listed risk and escalate those without an assigned owner."
)

// RiskDetector raises a QHSE alert when unmitigated high or critical risks exist.
type RiskDetector struct {
	store sources.RiskStore
	now   Clock
}

// NewRiskDetector creates a risk detector reading from store.
func NewRiskDetector(store sources.RiskStore, clock Clock) *RiskDetector {
	return &RiskDetector{store: store, now: orNow(clock)}
}

// Name returns the source name.
func (d *RiskDetector) Name() string { return "risks" }

// Detect emits a single WARNING alert summarizing every exposed risk, or nothing.
func (d *RiskDetector) Detect(ctx context.Context, scope alerts.Scope) ([]*alerts.Alert, error) {
	risks, err := d.store.FindHighOrCriticalActiveRisks(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to find high or critical risks: %w", err)
	}
	if len(risks) == 0 {
		return nil, nil
	}

	refs := make([]alerts.RiskRef, 0, len(risks))
	critical := 0
	for _, r := range risks {
		refs = append(refs, alerts.RiskRef{
			ID:          r.ID,
			Code:        r.Code,
			Title:       r.Title,
			Level:       r.Level,
			Probability: r.Probability,
			Impact:      r.Impact,
		})
		if r.Level == sources.RiskLevelCritical {
			critical++
		}
	}

	draft := alerts.Draft{
		AlertType: alerts.TypeQHSE,
		Severity:  alerts.SeverityWarning,
		Title:     fmt.Sprintf("%d high or critical risk(s) under watch", len(risks)),
		Description: fmt.Sprintf("%d risk(s) rated HIGH or CRITICAL are still active or under surveillance, %d of them CRITICAL.",
			len(risks), critical),
		Recommendation: riskRecommendation,
		Evidence:       alerts.RiskExposureEvidence{Count: len(refs), Risks: refs},
		Subject:        subjectRiskExposure,
	}
	return []*alerts.Alert{alerts.NewAlert(scope, draft, d.now())}, nil
}
