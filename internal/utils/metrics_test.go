package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorCounters(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordConnect("connected")
	m.RecordConnect("failed")
	m.RecordConnect("connected")
	m.RecordPurchase("confirmed", 4)
	m.RecordSubmission(9)
	m.RecordIgnored("purchase", "purchase_in_flight")
	m.IncActiveSessions()
	m.IncActiveSessions()
	m.DecActiveSessions()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connects.WithLabelValues("connected")))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.rewards))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ignored.WithLabelValues("purchase", "purchase_in_flight")))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordAPIRequest("/api/sessions", http.MethodPost, 201, 5*time.Millisecond)
	m.ObserveFlow("purchase", 4*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `kaika_http_requests_total{method="POST",route="/api/sessions",status="201"} 1`))
	assert.Contains(t, body, "kaika_flow_duration_seconds_count")
}
