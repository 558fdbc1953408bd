package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics covers the decision engine, the spray handler and the history aggregator.
type CoreMetrics struct {
	RecommendationsTotal *prometheus.CounterVec
	SpraysTotal          *prometheus.CounterVec
	AggregationsTotal    *prometheus.CounterVec
	AggregationDuration  prometheus.Histogram
	AggregatedEntries    prometheus.Histogram
	AutopilotRuns        *prometheus.CounterVec
}

// NewCoreMetrics creates and registers core metrics.
func NewCoreMetrics(namespace string) *CoreMetrics {
	m := &CoreMetrics{
		RecommendationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decision",
				Name:      "recommendations_total",
				Help:      "Total number of recommendations produced",
			},
			[]string{"should_spray", "urgency"},
		),
		SpraysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "spray",
				Name:      "commands_total",
				Help:      "Total number of spray commands handled",
			},
			[]string{"mode", "pesticide_type", "status"},
		),
		AggregationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "history",
				Name:      "aggregations_total",
				Help:      "Total number of history aggregations",
			},
			[]string{"status"},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "history",
				Name:      "aggregation_duration_seconds",
				Help:      "Duration of history aggregations including the fan-out fetch",
				Buckets:   prometheus.DefBuckets,
			},
		),
		AggregatedEntries: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "history",
				Name:      "aggregated_entries",
				Help:      "Number of entries in a merged history feed",
				Buckets:   prometheus.LinearBuckets(0, 10, 10),
			},
		),
		AutopilotRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "autopilot",
				Name:      "runs_total",
				Help:      "Total number of autopilot evaluations",
			},
			[]string{"outcome"}, // outcome: sprayed, skipped, cooldown, error
		),
	}

	MustRegister(
		m.RecommendationsTotal,
		m.SpraysTotal,
		m.AggregationsTotal,
		m.AggregationDuration,
		m.AggregatedEntries,
		m.AutopilotRuns,
	)

	return m
}
