package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/reembed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestMetrics_Embedding(t *testing.T) {
	m := newTestMetrics(t)

	m.BatchEmbedded("bge", "chunks", 32, 200*time.Millisecond)
	m.BatchEmbedded("bge", "chunks", 8, 50*time.Millisecond)
	m.BatchEmbedded("bge", "phrases", 5, 10*time.Millisecond)
	m.BatchFailed("bge", "chunks")
	m.JobFinished(&reembed.Summary{Model: "bge"})
	m.JobFinished(&reembed.Summary{Model: "bge", Cancelled: true})

	assert.Equal(t, 40.0, testutil.ToFloat64(m.EmbeddedTexts.WithLabelValues("bge", "chunks")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.EmbeddedTexts.WithLabelValues("bge", "phrases")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailedBatches.WithLabelValues("bge", "chunks")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Jobs))

	expected := `
		# HELP embedeval_embedding_jobs_total Finished embedding jobs by result
		# TYPE embedeval_embedding_jobs_total counter
		embedeval_embedding_jobs_total{model="bge",result="cancelled"} 1
		embedeval_embedding_jobs_total{model="bge",result="complete"} 1
	`
	assert.NoError(t, testutil.CollectAndCompare(m.Jobs, strings.NewReader(expected)))
}

func TestMetrics_Search(t *testing.T) {
	m := newTestMetrics(t)

	m.SnapshotLoaded("bge", 120, time.Millisecond)
	m.SnapshotHit("bge")
	m.SnapshotHit("bge")
	m.Searched("bge", 120, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotLoads.WithLabelValues("bge")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.SnapshotVectors.WithLabelValues("bge")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotHits.WithLabelValues("bge")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchDuration))
}

func TestMetrics_Eval(t *testing.T) {
	m := newTestMetrics(t)

	m.PhraseEvaluated("bge", eval.OutcomeHit, 250*time.Millisecond)
	m.PhraseEvaluated("bge", eval.OutcomeMiss, 500*time.Millisecond)
	m.PhraseEvaluated("bge", eval.OutcomeExcluded, 0)
	m.RunFinished("bge", core.RunComplete)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhrasesEvaluated.WithLabelValues("bge", eval.OutcomeExcluded)))
	assert.Equal(t, 3, testutil.CollectAndCount(m.PhrasesEvaluated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("bge", "complete")))

	// Excluded phrases have no latency.
	expected := `
		# HELP embedeval_eval_phrase_latency_seconds Retrieval latency per evaluated phrase
		# TYPE embedeval_eval_phrase_latency_seconds histogram
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="0.001"} 0
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="0.005"} 0
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="0.01"} 0
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="0.05"} 0
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="0.1"} 0
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="0.5"} 2
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="1"} 2
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="5"} 2
		embedeval_eval_phrase_latency_seconds_bucket{model="bge",le="+Inf"} 2
		embedeval_eval_phrase_latency_seconds_sum{model="bge"} 0.75
		embedeval_eval_phrase_latency_seconds_count{model="bge"} 2
	`
	assert.NoError(t, testutil.CollectAndCompare(m.PhraseLatency, strings.NewReader(expected)))
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.RequestServed("POST", "/api/v1/evaluate", 200, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `embedeval_http_requests_total{method="POST",route="/api/v1/evaluate",status_code="200"} 1`)
}
