package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/anything", nil))
	require.Equal(t, http.StatusTeapot, res.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `clearline_http_requests_total{code="418",route="unknown"} 1`)
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveSessionResolution("authenticated")
	m.ObserveGuardDecision("denied")
	m.ObserveGuardDecision("denied")
	m.ObserveLogin("failure")

	body := scrape(t, m)
	assert.Contains(t, body, `clearline_session_resolutions_total{outcome="authenticated"} 1`)
	assert.Contains(t, body, `clearline_guard_decisions_total{outcome="denied"} 2`)
	assert.Contains(t, body, `clearline_login_attempts_total{result="failure"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSessionResolution("x")
	m.ObserveGuardDecision("x")
	m.ObserveLogin("x")

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var sb strings.Builder
	sb.WriteString(res.Body.String())
	return sb.String()
}
