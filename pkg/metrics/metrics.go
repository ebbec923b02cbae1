// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks ops HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ops_request_duration_seconds",
			Help:    "Ops HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total ops HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ops_requests_total",
			Help: "Total ops HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// QueryDuration tracks the wall time of a structured query including retries.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_query_duration_seconds",
			Help:    "Structured query duration in seconds, retries included",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120, 240},
		},
		[]string{"query", "backend", "status"},
	)

	// QueryAttemptsTotal counts individual backend calls by outcome.
	QueryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_query_attempts_total",
			Help: "Structured query attempts by outcome",
		},
		[]string{"query", "backend", "outcome"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// TasksTotal counts pipeline tasks by stage and status.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_total",
			Help: "Pipeline tasks by stage and status",
		},
		[]string{"stage", "status"},
	)

	// StageDuration tracks how long each pipeline stage takes to reach its barrier.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"stage"},
	)

	// EventsSentTotal counts events handed to a destination.
	EventsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_sent_total",
			Help: "Events sent to the destination by status",
		},
		[]string{"destination", "status"},
	)

	// TaxonomyEventTypes tracks the size of the taxonomy being built.
	TaxonomyEventTypes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxonomy_event_types",
			Help: "Number of event types in the accumulated taxonomy",
		},
	)
)

// RecordRequest records metrics for an ops HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordQuery records the final outcome of a structured query.
func RecordQuery(query, backend, status string, duration float64) {
	QueryDuration.WithLabelValues(query, backend, status).Observe(duration)
}

// RecordAttempt records a single backend call.
func RecordAttempt(query, backend, outcome string) {
	QueryAttemptsTotal.WithLabelValues(query, backend, outcome).Inc()
}

// RecordTokens records token usage reported by a backend.
func RecordTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordTask records a finished pipeline task.
func RecordTask(stage, status string) {
	TasksTotal.WithLabelValues(stage, status).Inc()
}

// RecordStage records a finished pipeline stage.
func RecordStage(stage string, duration float64) {
	StageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordEventSent records one destination delivery.
func RecordEventSent(destination, status string) {
	EventsSentTotal.WithLabelValues(destination, status).Inc()
}

// SetTaxonomySize sets the current number of event types.
func SetTaxonomySize(n int) {
	TaxonomyEventTypes.Set(float64(n))
}
