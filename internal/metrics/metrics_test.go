package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.RecordGeneration("success", time.Second)
	a.RecordGeneration("failure", time.Second)
	a.RecordSummarization("failure")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.GenerationsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GenerationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SummarizationsTotal.WithLabelValues("failure")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordRetrieval(3, 10*time.Millisecond)
	m.TaskFaultsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ragchat_task_faults_total 1")
	assert.Contains(t, rec.Body.String(), "ragchat_retrieved_passages_count 1")
}
