package metrics

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

func TestRecorder(t *testing.T) {
	r := New()
	r.RecordProviderAttempt("yahoo_finance", "success")
	r.RecordProviderAttempt("yahoo_finance", "success")
	r.RecordIngestion("activated", 10*time.Millisecond)
	r.SetFailureStreak("AAPL", 3)
	r.RecordAlert("AAPL")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.providerAttempts.WithLabelValues("yahoo_finance", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ingestions.WithLabelValues("activated")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.failureStreak.WithLabelValues("AAPL")))

	r.SetFailureStreak("AAPL", 0)
	assert.Equal(t, 0, testutil.CollectAndCount(r.failureStreak))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordTraining("trained", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `fintel_training_runs_total{outcome="trained"} 1`))
}
