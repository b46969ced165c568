// Package metrics provides Prometheus metrics for ragchat
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dialog engine
type Metrics struct {
	registry *prometheus.Registry

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	PromptTokens       prometheus.Histogram

	// Retrieval metrics
	RetrievalDuration prometheus.Histogram
	RetrievedPassages prometheus.Histogram

	// Summarization metrics
	SummarizationsTotal *prometheus.CounterVec

	// Task runner metrics
	TasksInFlight   prometheus.Gauge
	TaskFaultsTotal prometheus.Counter

	// Prompt registry metrics
	PromptChangesTotal prometheus.Counter
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.GenerationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragchat_generations_total",
			Help: "Total number of dialog turns by outcome",
		},
		[]string{"status"},
	)

	m.GenerationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragchat_generation_duration_seconds",
			Help:    "Duration of a full dialog turn in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	m.PromptTokens = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragchat_prompt_tokens",
			Help:    "Token count of rendered prompts",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		},
	)

	m.RetrievalDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragchat_retrieval_duration_seconds",
			Help:    "Duration of similarity searches in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	m.RetrievedPassages = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragchat_retrieved_passages",
			Help:    "Number of passages returned per query",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	m.SummarizationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragchat_summarizations_total",
			Help: "Total number of history summarizations by outcome",
		},
		[]string{"status"},
	)

	m.TasksInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragchat_tasks_in_flight",
			Help: "Number of background tasks currently running",
		},
	)

	m.TaskFaultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ragchat_task_faults_total",
			Help: "Total number of background tasks that panicked",
		},
	)

	m.PromptChangesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ragchat_prompt_changes_total",
			Help: "Total number of active prompt changes",
		},
	)

	return m
}

// Registry exposes the registry for collection and tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration records one finished dialog turn
func (m *Metrics) RecordGeneration(status string, duration time.Duration) {
	m.GenerationsTotal.WithLabelValues(status).Inc()
	m.GenerationDuration.Observe(duration.Seconds())
}

// RecordRetrieval records one similarity search
func (m *Metrics) RecordRetrieval(passages int, duration time.Duration) {
	m.RetrievalDuration.Observe(duration.Seconds())
	m.RetrievedPassages.Observe(float64(passages))
}

// RecordSummarization records one summarization attempt
func (m *Metrics) RecordSummarization(status string) {
	m.SummarizationsTotal.WithLabelValues(status).Inc()
}
