package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"orion/internal/alerts"
)

// scopeRequest is the JSON body naming a tenant scope.
type scopeRequest struct {
	TenantID       string  `json:"tenantId"`
	AcademicYearID *string `json:"academicYearId"`
	SchoolLevelID  *string `json:"schoolLevelId"`
}

func (s scopeRequest) scope() alerts.Scope {
	return alerts.Scope{
		TenantID:       strings.TrimSpace(s.TenantID),
		AcademicYearID: nonEmpty(s.AcademicYearID),
		SchoolLevelID:  nonEmpty(s.SchoolLevelID),
	}
}

// nonEmpty treats an empty or blank string like an absent one.
func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// requireMethod validates that the request method matches the expected method.
// Returns true if valid, false otherwise (and writes error response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeJSON decodes the request body as JSON into the provided value.
// Returns true on success, false on error (and writes error response).
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes the value as JSON with appropriate headers.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// requireQueryParam extracts a query parameter and validates it's not empty.
// Returns the value and true if valid, empty string and false otherwise (and writes error response).
func requireQueryParam(w http.ResponseWriter, r *http.Request, paramName string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(paramName))
	if value == "" {
		http.Error(w, paramName+" query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// optionalQueryParam returns a pointer to the query parameter value, or nil when it is absent.
func optionalQueryParam(r *http.Request, paramName string) *string {
	value := r.URL.Query().Get(paramName)
	return nonEmpty(&value)
}

// parseLimit reads the limit query parameter. An absent limit is 0, which lets the engine apply its default.
// Returns false (and writes error response) when the value is not a non-negative integer.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}
