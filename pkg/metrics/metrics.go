// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CopilotTurnDuration tracks end-to-end copilot turn duration.
	CopilotTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_turn_duration_seconds",
			Help:    "Copilot turn duration from query accept to terminal event",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "outcome"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// StreamConnectionsActive tracks active NDJSON stream connections.
	StreamConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "copilot_stream_connections_active",
			Help: "Number of active copilot response streams",
		},
	)

	// ValidationOutcomesTotal tracks repair-and-validate outcomes.
	ValidationOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_validation_outcomes_total",
			Help: "Structured response validation outcomes",
		},
		[]string{"outcome"}, // direct, repaired, failed
	)

	// FallbacksTotal tracks safe fallback responses served.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_fallbacks_total",
			Help: "Safe fallback responses served",
		},
		[]string{"reason"},
	)

	// ActionDispatchesTotal tracks dispatched actions.
	ActionDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_action_dispatches_total",
			Help: "Suggested action dispatch attempts",
		},
		[]string{"action_type", "result"},
	)

	// ContextRowsTruncatedTotal tracks sanitizer truncations.
	ContextRowsTruncatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "copilot_context_truncations_total",
			Help: "Context snapshots truncated to the row cap",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for a completed copilot turn.
func RecordTurn(model, outcome string, duration float64, tokensIn, tokensOut int) {
	CopilotTurnDuration.WithLabelValues(model, outcome).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordValidation records a repair-and-validate outcome.
func RecordValidation(outcome string) {
	ValidationOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordFallback records a safe fallback being served.
func RecordFallback(reason string) {
	FallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordDispatch records an action dispatch attempt.
func RecordDispatch(actionType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	ActionDispatchesTotal.WithLabelValues(actionType, result).Inc()
}

// IncrementStreamConnections increments the active stream connection count.
func IncrementStreamConnections() {
	StreamConnectionsActive.Inc()
}

// DecrementStreamConnections decrements the active stream connection count.
func DecrementStreamConnections() {
	StreamConnectionsActive.Dec()
}
