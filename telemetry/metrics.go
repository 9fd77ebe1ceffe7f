// Package telemetry exports Prometheus metrics for embedding jobs, searches
// and evaluation runs.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(reg)
//	job := reembed.NewJob(stores, provider, reembed.WithMonitor(m))
//	http.Handle("/metrics", m.Handler())
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "embedeval"

// Metrics implements the monitor interfaces of the embedding job, the
// search engine and the evaluation coordinator.
type Metrics struct {
	gatherer prometheus.Gatherer

	// EmbeddedTexts counts texts embedded.
	// Labels: model, phase (chunks|phrases)
	EmbeddedTexts *prometheus.CounterVec

	// BatchDuration measures provider embedding calls in seconds.
	// Labels: model, phase
	BatchDuration *prometheus.HistogramVec

	// FailedBatches counts batches the provider rejected.
	// Labels: model, phase
	FailedBatches *prometheus.CounterVec

	// Jobs counts finished embedding jobs.
	// Labels: model, result (complete|cancelled)
	Jobs *prometheus.CounterVec

	// SnapshotLoads counts vector snapshots read from storage.
	// Labels: model
	SnapshotLoads *prometheus.CounterVec

	// SnapshotVectors is the size of the latest snapshot per model.
	SnapshotVectors *prometheus.GaugeVec

	// SnapshotHits counts searches served from a cached snapshot.
	SnapshotHits *prometheus.CounterVec

	// SearchDuration measures vector searches in seconds.
	// Labels: model
	SearchDuration *prometheus.HistogramVec

	// PhrasesEvaluated counts phrases by outcome.
	// Labels: model, outcome (hit|miss|excluded)
	PhrasesEvaluated *prometheus.CounterVec

	// PhraseLatency measures per-phrase retrieval in seconds.
	// Labels: model
	PhraseLatency *prometheus.HistogramVec

	// Runs counts finalized evaluation runs.
	// Labels: model, status
	Runs *prometheus.CounterVec

	// HTTPRequests counts API requests.
	// Labels: method, route, status_code
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration measures API requests in seconds. Streaming
	// endpoints are measured until the stream ends.
	// Labels: method, route
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	_ reembed.Monitor = (*Metrics)(nil)
	_ search.Monitor  = (*Metrics)(nil)
	_ eval.Monitor    = (*Metrics)(nil)
)

// NewMetrics creates every metric and registers it with reg. Use a fresh
// registry per Metrics; registering twice with one registry panics.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	latencyBuckets := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	return &Metrics{
		gatherer: reg,

		EmbeddedTexts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedded_texts_total",
			Help:      "Texts embedded by model and phase",
		}, []string{"model", "phase"}),

		BatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_batch_duration_seconds",
			Help:      "Duration of provider embedding calls",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model", "phase"}),

		FailedBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_failed_total",
			Help:      "Embedding batches the provider failed",
		}, []string{"model", "phase"}),

		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_jobs_total",
			Help:      "Finished embedding jobs by result",
		}, []string{"model", "result"}),

		SnapshotLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_snapshot_loads_total",
			Help:      "Vector snapshots read from storage",
		}, []string{"model"}),

		SnapshotVectors: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_snapshot_vectors",
			Help:      "Chunk vectors in the latest snapshot",
		}, []string{"model"}),

		SnapshotHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_snapshot_hits_total",
			Help:      "Searches served from a cached snapshot",
		}, []string{"model"}),

		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of vector searches",
			Buckets:   latencyBuckets,
		}, []string{"model"}),

		PhrasesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_phrases_total",
			Help:      "Evaluated phrases by outcome",
		}, []string{"model", "outcome"}),

		PhraseLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "eval_phrase_latency_seconds",
			Help:      "Retrieval latency per evaluated phrase",
			Buckets:   latencyBuckets,
		}, []string{"model"}),

		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_runs_total",
			Help:      "Finalized evaluation runs by status",
		}, []string{"model", "status"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 10, 60, 300},
		}, []string{"method", "route"}),
	}
}

// Handler serves the registered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) BatchEmbedded(model, phase string, texts int, elapsed time.Duration) {
	m.EmbeddedTexts.WithLabelValues(model, phase).Add(float64(texts))
	m.BatchDuration.WithLabelValues(model, phase).Observe(elapsed.Seconds())
}

func (m *Metrics) BatchFailed(model, phase string) {
	m.FailedBatches.WithLabelValues(model, phase).Inc()
}

func (m *Metrics) JobFinished(summary *reembed.Summary) {
	result := "complete"
	if summary.Cancelled {
		result = "cancelled"
	}
	m.Jobs.WithLabelValues(summary.Model, result).Inc()
}

func (m *Metrics) SnapshotLoaded(model string, vectors int, _ time.Duration) {
	m.SnapshotLoads.WithLabelValues(model).Inc()
	m.SnapshotVectors.WithLabelValues(model).Set(float64(vectors))
}

func (m *Metrics) SnapshotHit(model string) {
	m.SnapshotHits.WithLabelValues(model).Inc()
}

func (m *Metrics) Searched(model string, _ int, elapsed time.Duration) {
	m.SearchDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) PhraseEvaluated(model, outcome string, latency time.Duration) {
	m.PhrasesEvaluated.WithLabelValues(model, outcome).Inc()
	if outcome != eval.OutcomeExcluded {
		m.PhraseLatency.WithLabelValues(model).Observe(latency.Seconds())
	}
}

func (m *Metrics) RunFinished(model string, status core.RunStatus) {
	m.Runs.WithLabelValues(model, string(status)).Inc()
}

// RequestServed records one API request.
func (m *Metrics) RequestServed(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
