package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSubmitAndOutcome(t *testing.T) {
	m := getMetrics()

	RecordSubmit("metrics-test", 2)
	RecordSubmit("metrics-test", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submitTotal.WithLabelValues("metrics-test")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueSize.WithLabelValues("metrics-test")))

	RecordOutcome("metrics-test", StatusCompleted, 10*time.Millisecond, 1)
	RecordOutcome("metrics-test", StatusSkipped, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomeTotal.WithLabelValues("metrics-test", StatusCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomeTotal.WithLabelValues("metrics-test", StatusSkipped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.queueSize.WithLabelValues("metrics-test")))
}

func TestRecordScheduleTick(t *testing.T) {
	m := getMetrics()

	RecordScheduleTick("tick-test", true)
	RecordScheduleTick("tick-test", false)
	RecordScheduleTick("tick-test", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scheduleTicks.WithLabelValues("tick-test", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scheduleTicks.WithLabelValues("tick-test", "error")))
}

func TestForget(t *testing.T) {
	m := getMetrics()

	RecordSubmit("forget-test", 1)
	RecordStart("forget-test", time.Millisecond, 0)
	RecordOutcome("forget-test", StatusCompleted, time.Millisecond, 0)
	RecordOutcome("forget-test", StatusFailed, time.Millisecond, 0)
	RecordSubmit("forget-keep", 1)

	before := testutil.CollectAndCount(m.outcomeTotal)
	Forget("forget-test")

	assert.Equal(t, before-2, testutil.CollectAndCount(m.outcomeTotal))
	assert.False(t, m.submitTotal.DeleteLabelValues("forget-test"), "series already removed")
	assert.False(t, m.queueSize.DeleteLabelValues("forget-test"), "series already removed")
	assert.False(t, m.waitDuration.DeleteLabelValues("forget-test"), "series already removed")
	assert.False(t, m.taskDuration.DeleteLabelValues("forget-test"), "series already removed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submitTotal.WithLabelValues("forget-keep")))
}

func TestMetricsHandler(t *testing.T) {
	RecordSubmit("handler-test", 1)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sequencer_submit_total{sequencer="handler-test"}`)
}
