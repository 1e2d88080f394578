package detector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"orion/internal/alerts"
	"orion/internal/rules"
	"orion/internal/sources"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSnapshotConcurrency bounds per-objective snapshot lookups when no batch query is available.
	DefaultSnapshotConcurrency = 8

	kpiRecommendation = "Analyze the causes of the deviation with the objective owner and adjust the action plan."
)

// KpiDetector compares tracked objectives with their latest KPI snapshot.
type KpiDetector struct {
	objectives  sources.ObjectiveStore
	snapshots   sources.SnapshotStore
	concurrency int
	now         Clock
}

// NewKpiDetector creates a KPI deviation detector.
// A concurrency below one falls back to DefaultSnapshotConcurrency.
func NewKpiDetector(objectives sources.ObjectiveStore, snapshots sources.SnapshotStore, concurrency int, clock Clock) *KpiDetector {
	if concurrency < 1 {
		concurrency = DefaultSnapshotConcurrency
	}
	return &KpiDetector{
		objectives:  objectives,
		snapshots:   snapshots,
		concurrency: concurrency,
		now:         orNow(clock),
	}
}

// Name returns the source name.
func (d *KpiDetector) Name() string { return "kpis" }

// Detect emits one alert per off-track objective, in objective order.
// Objectives without any snapshot are skipped.
func (d *KpiDetector) Detect(ctx context.Context, scope alerts.Scope) ([]*alerts.Alert, error) {
	objectives, err := d.objectives.FindTrackedObjectives(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to find tracked objectives: %w", err)
	}
	if len(objectives) == 0 {
		return nil, nil
	}

	latest, err := d.latestSnapshots(ctx, scope.TenantID, objectives)
	if err != nil {
		return nil, err
	}

	now := d.now()
	var out []*alerts.Alert
	for i := range objectives {
		obj := &objectives[i]
		snap := latest[i]
		if snap == nil {
			slog.Debug("Skipping objective without snapshot",
				"tenant_id", scope.TenantID,
				"objective_id", obj.ID,
				"kpi_id", obj.KpiID,
			)
			continue
		}

		dev := rules.Classify(rules.DeviationInput{
			Target:        obj.TargetValue,
			Actual:        snap.Value,
			MinAcceptable: obj.MinAcceptable,
			MaxAcceptable: obj.MaxAcceptable,
		})
		if !dev.IsOffTrack {
			continue
		}

		alertScope := scope
		if alertScope.AcademicYearID == nil {
			alertScope.AcademicYearID = obj.AcademicYearID
		}
		out = append(out, alerts.NewAlert(alertScope, kpiDraft(obj, snap, dev), now))
	}
	return out, nil
}

// latestSnapshots resolves the latest snapshot of every objective, aligned by index.
func (d *KpiDetector) latestSnapshots(ctx context.Context, tenantID string, objectives []sources.Objective) ([]*sources.Snapshot, error) {
	out := make([]*sources.Snapshot, len(objectives))

	if batch, ok := d.snapshots.(sources.BatchSnapshotStore); ok {
		keys := make([]sources.SnapshotKey, 0, len(objectives))
		seen := make(map[string]bool, len(objectives))
		for i := range objectives {
			key := objectives[i].SnapshotKey()
			if !seen[key.String()] {
				seen[key.String()] = true
				keys = append(keys, key)
			}
		}
		found, err := batch.FindLatestSnapshots(ctx, tenantID, keys)
		if err != nil {
			return nil, fmt.Errorf("failed to find latest snapshots: %w", err)
		}
		for i := range objectives {
			out[i] = found[objectives[i].SnapshotKey().String()]
		}
		return out, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i := range objectives {
		key := objectives[i].SnapshotKey()
		g.Go(func() error {
			snap, err := d.snapshots.FindLatestSnapshot(gCtx, tenantID, key)
			if err != nil {
				return fmt.Errorf("failed to find latest snapshot for kpi %s: %w", key.KpiID, err)
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func kpiDraft(obj *sources.Objective, snap *sources.Snapshot, dev rules.Deviation) alerts.Draft {
	name := obj.KpiName
	if name == "" {
		name = obj.KpiCode
	}
	unit := ""
	if obj.KpiUnit != nil && *obj.KpiUnit != "" {
		unit = " " + *obj.KpiUnit
	}

	return alerts.Draft{
		AlertType: rules.MapCategory(obj.KpiCategory),
		Severity:  dev.Severity,
		Title:     fmt.Sprintf("KPI off track: %s", name),
		Description: fmt.Sprintf("%s is at %s%s against a target of %s%s (%s%% gap, period %s).",
			name, display(snap.Value), unit, display(obj.TargetValue), unit, signed(dev.PercentageGap), obj.Period),
		Recommendation: kpiRecommendation,
		Evidence: alerts.KpiDeviationEvidence{
			ObjectiveID:   obj.ID,
			KpiID:         obj.KpiID,
			KpiCode:       obj.KpiCode,
			TargetValue:   rules.Round(obj.TargetValue, 2),
			ActualValue:   rules.Round(snap.Value, 2),
			Gap:           rules.Round(dev.Gap, 2),
			PercentageGap: rules.Round(dev.PercentageGap, 2),
			Period:        obj.Period,
		},
		Subject: "kpi." + obj.ID,
	}
}

// display formats a value with one decimal for alert text.
func display(v float64) string {
	return strconv.FormatFloat(rules.Round(v, 1), 'f', 1, 64)
}

func signed(v float64) string {
	s := display(v)
	if v > 0 && s != "0.0" {
		return "+" + s
	}
	return s
}
