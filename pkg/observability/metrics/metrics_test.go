package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(measurementsRecorded.WithLabelValues("Stunted"))
	ObserveMeasurement("Stunted")
	ObserveMeasurement("Stunted")
	assert.Equal(t, before+2, testutil.ToFloat64(measurementsRecorded.WithLabelValues("Stunted")))

	ObserveAccessDenied("delete_child", "forbidden")
	assert.GreaterOrEqual(t, testutil.ToFloat64(accessDenied.WithLabelValues("delete_child", "forbidden")), 1.0)

	ObservePublicRead("miss")
	assert.GreaterOrEqual(t, testutil.ToFloat64(publicReads.WithLabelValues("miss")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveMeasurement("Wasted")
	ObserveRequest(http.MethodGet, http.StatusOK, 0.01)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `growthwatch_registry_measurements_recorded_total{status="Wasted"}`)
	assert.Contains(t, string(body), "growthwatch_http_request_duration_seconds")
}
