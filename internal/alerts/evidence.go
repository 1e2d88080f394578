package alerts

import (
	"encoding/json"
	"fmt"
	"time"
)

// EvidenceKind tags the concrete type of an alert's metadata payload.
type EvidenceKind string

const (
	KindOpenIncidents    EvidenceKind = "open_critical_incidents"
	KindIncidentPatterns EvidenceKind = "repeated_incident_patterns"
	KindRiskExposure     EvidenceKind = "risk_exposure"
	KindKpiDeviation     EvidenceKind = "kpi_deviation"
)

// Evidence is the source-specific payload attached to an alert.
// It is persisted as a JSON object carrying a "kind" discriminator.
type Evidence interface {
	Kind() EvidenceKind
}

// IncidentRef identifies one incident inside an alert payload.
type IncidentRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// OpenIncidentsEvidence lists the open critical incidents behind an alert.
type OpenIncidentsEvidence struct {
	Count     int           `json:"count"`
	Incidents []IncidentRef `json:"incidents"`
}

func (OpenIncidentsEvidence) Kind() EvidenceKind { return KindOpenIncidents }

// PatternRef is one repeated (type, category) group of critical incidents.
type PatternRef struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// IncidentPatternsEvidence bundles every repeated pattern found in one run.
type IncidentPatternsEvidence struct {
	Patterns []PatternRef `json:"patterns"`
}

func (IncidentPatternsEvidence) Kind() EvidenceKind { return KindIncidentPatterns }

// RiskRef identifies one risk register entry inside an alert payload.
type RiskRef struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Level       string `json:"level"`
	Probability int    `json:"probability"`
	Impact      int    `json:"impact"`
}

// RiskExposureEvidence lists unmitigated high and critical risks.
type RiskExposureEvidence struct {
	Count int       `json:"count"`
	Risks []RiskRef `json:"risks"`
}

func (RiskExposureEvidence) Kind() EvidenceKind { return KindRiskExposure }

// KpiDeviationEvidence carries the figures of one off-track objective.
type KpiDeviationEvidence struct {
	ObjectiveID   string  `json:"objectiveId"`
	KpiID         string  `json:"kpiId"`
	KpiCode       string  `json:"kpiCode"`
	TargetValue   float64 `json:"targetValue"`
	ActualValue   float64 `json:"actualValue"`
	Gap           float64 `json:"gap"`
	PercentageGap float64 `json:"percentageGap"`
	Period        string  `json:"period"`
}

func (KpiDeviationEvidence) Kind() EvidenceKind { return KindKpiDeviation }

// EncodeEvidence serializes evidence as a flat JSON object with its kind.
func EncodeEvidence(e Evidence) ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten evidence: %w", err)
	}
	kind, _ := json.Marshal(e.Kind())
	fields["kind"] = kind
	return json.Marshal(fields)
}

// DecodeEvidence restores the concrete evidence type from its JSON form.
func DecodeEvidence(data []byte) (Evidence, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var head struct {
		Kind EvidenceKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to read evidence kind: %w", err)
	}

	switch head.Kind {
	case KindOpenIncidents:
		var e OpenIncidentsEvidence
		return decodeInto(data, &e)
	case KindIncidentPatterns:
		var e IncidentPatternsEvidence
		return decodeInto(data, &e)
	case KindRiskExposure:
		var e RiskExposureEvidence
		return decodeInto(data, &e)
	case KindKpiDeviation:
		var e KpiDeviationEvidence
		return decodeInto(data, &e)
	default:
		return nil, fmt.Errorf("unknown evidence kind: %q", head.Kind)
	}
}

func decodeInto[T Evidence](data []byte, target *T) (Evidence, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
	}
	return *target, nil
}

// MarshalJSON writes the alert with its evidence flattened under "metadata".
func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	meta, err := EncodeEvidence(a.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: plain(a), Metadata: meta})
}

// UnmarshalJSON reads an alert and decodes its tagged evidence.
func (a *Alert) UnmarshalJSON(data []byte) error {
	type plain Alert
	aux := struct {
		*plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	evidence, err := DecodeEvidence(aux.Metadata)
	if err != nil {
		return err
	}
	a.Metadata = evidence
	return nil
}
