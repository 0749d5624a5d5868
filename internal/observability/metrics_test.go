package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	return res.Body.String()
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/contracts", nil))

	body := scrape(t, m)
	assert.Contains(t, body, `meridian_http_requests_total{code="418",route="unknown"} 1`)
	assert.Contains(t, body, "meridian_http_request_duration_seconds")
}

func TestOutcomeCounters(t *testing.T) {
	m := NewMetrics()
	m.WebhookVerification("automation", "accepted")
	m.WebhookVerification("automation", "accepted")
	m.WebhookVerification("payments", "invalid_signature")
	m.RBACDenied("contracts.approve")

	body := scrape(t, m)
	assert.Contains(t, body, `meridian_webhook_verifications_total{outcome="accepted",provider="automation"} 2`)
	assert.Contains(t, body, `meridian_webhook_verifications_total{outcome="invalid_signature",provider="payments"} 1`)
	assert.Contains(t, body, `meridian_rbac_denials_total{requirement="contracts.approve"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.WebhookVerification("automation", "accepted")
	m.RBACDenied("contracts.approve")
	assert.NotNil(t, m.Registerer())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	res := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}
