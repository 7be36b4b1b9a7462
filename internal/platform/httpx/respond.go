// Package httpx provides JSON response helpers for the operational endpoints
// that sit next to the HTML site: health, readiness and the jobs probe.
package httpx

import (
	"encoding/json"
	"net/http"
)

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// HealthStatus is the payload of the health and readiness endpoints.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// Healthy responds with a passing health payload.
func Healthy(w http.ResponseWriter, checks map[string]string) {
	JSON(w, http.StatusOK, HealthStatus{Status: "ok", Checks: checks})
}

// Unhealthy responds with a failing health payload.
func Unhealthy(w http.ResponseWriter, checks map[string]string) {
	JSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "degraded", Checks: checks})
}
