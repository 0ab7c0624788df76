// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_turns_total",
			Help: "Total number of conversation turns processed, by intent",
		},
		[]string{"intent"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_turns_failed_total",
			Help: "Total number of turns that failed, by error code",
		},
		[]string{"error_code"},
	)

	QuotesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_quotes_issued_total",
			Help: "Total number of quotes issued, by coverage type",
		},
		[]string{"coverage_type"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_escalations_total",
			Help: "Total number of sessions escalated to human review, by reason",
		},
		[]string{"reason"},
	)

	Clarifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_engine_clarifications_total",
			Help: "Total number of clarification prompts returned",
		},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "quote_engine_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
	)
)
