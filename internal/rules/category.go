package rules

import (
	"strings"

	"orion/internal/alerts"
)

// categoryRules is evaluated in order; the first match wins.
var categoryRules = []struct {
	needles []string
	target  alerts.AlertType
}{
	{needles: []string{"PEDAGOGICAL", "PEDAGOGIE"}, target: alerts.TypePedagogical},
	{needles: []string{"FINANCIAL", "FINANCE"}, target: alerts.TypeFinancial},
	{needles: []string{"RH", "HR"}, target: alerts.TypeRH},
}

// MapCategory maps a free-text KPI category to an alert domain.
// Missing or unmatched labels map to OPERATIONAL.
func MapCategory(label *string) alerts.AlertType {
	if label == nil {
		return alerts.TypeOperational
	}
	upper := strings.ToUpper(*label)
	for _, rule := range categoryRules {
		for _, needle := range rule.needles {
			if strings.Contains(upper, needle) {
				return rule.target
			}
		}
	}
	return alerts.TypeOperational
}
