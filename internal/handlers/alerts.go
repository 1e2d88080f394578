package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"orion/internal/alerts"
)

// BranchFailure describes a detector that failed during generation.
type BranchFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// GenerateResponse is the body returned by GenerateAlerts.
type GenerateResponse struct {
	Alerts   []*alerts.Alert `json:"alerts"`
	Inserted int             `json:"inserted"`
	Failures []BranchFailure `json:"failures"`
}

// AlertsResponse wraps a list of alerts.
type AlertsResponse struct {
	Alerts []*alerts.Alert `json:"alerts"`
}

// AcknowledgeRequest is the body accepted by AcknowledgeAlert.
type AcknowledgeRequest struct {
	AlertID  string `json:"alertId"`
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
}

// AcknowledgeResponse reports how many alerts changed state. Zero means nothing matched.
type AcknowledgeResponse struct {
	Affected int64 `json:"affected"`
}

// GenerateAlerts runs every detector for the requested scope and persists the result.
// POST /api/v1/alerts/generate
func (h *Handlers) GenerateAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req scopeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scope := req.scope()

	result, err := h.service.GenerateAllAlerts(r.Context(), scope)
	if handleServiceError(w, err, "generate alerts", scope.TenantID) {
		return
	}

	resp := GenerateResponse{
		Alerts:   result.Alerts,
		Inserted: result.Inserted,
		Failures: make([]BranchFailure, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, BranchFailure{Source: f.Source, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetActiveAlerts lists the ACTIVE alerts of a tenant, most severe first.
// GET /api/v1/alerts/active?tenant_id=&academic_year_id=&school_level_id=&limit=
func (h *Handlers) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	tenantID, ok := requireQueryParam(w, r, "tenant_id")
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	scope := alerts.Scope{
		TenantID:       tenantID,
		AcademicYearID: optionalQueryParam(r, "academic_year_id"),
		SchoolLevelID:  optionalQueryParam(r, "school_level_id"),
	}

	list, err := h.service.GetActiveAlerts(r.Context(), scope, limit)
	if handleServiceError(w, err, "get active alerts", tenantID) {
		return
	}
	writeJSON(w, http.StatusOK, AlertsResponse{Alerts: list})
}

// AcknowledgeAlert marks an alert as reviewed. Unknown or already acknowledged alerts report zero affected.
// POST /api/v1/alerts/acknowledge
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req AcknowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AlertID = strings.TrimSpace(req.AlertID)
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.UserID = strings.TrimSpace(req.UserID)

	affected, err := h.service.AcknowledgeAlert(r.Context(), req.AlertID, req.TenantID, req.UserID)
	if handleServiceError(w, err, "acknowledge alert", req.TenantID) {
		return
	}
	writeJSON(w, http.StatusOK, AcknowledgeResponse{Affected: affected})
}

// InitSession runs generation when a privileged user's session starts.
// Generation problems never fail the request; the body then carries whatever was produced.
// POST /api/v1/sessions/init
func (h *Handlers) InitSession(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req scopeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scope := req.scope()

	list := h.service.InitializeSession(r.Context(), scope)
	slog.Debug("Session initialized", "tenant_id", scope.TenantID, "alerts", len(list))
	writeJSON(w, http.StatusOK, AlertsResponse{Alerts: list})
}
