package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveScan("bound")
	m.ObserveScan("bound")
	m.ObserveScan("unknown_card")
	m.ObserveAttendance()
	m.ObservePurged(3)
	m.ObservePurged(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("bound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("unknown_card")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attendance))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purgedEvents))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan("bound")
		m.ObserveAttendance()
		m.ObserveQueue("enqueue")
		m.ObservePublishError()
		m.ObservePurged(1)
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
		m.ObservePanic()
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/v1/users", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tracker_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), `route="/v1/users"`)
}
