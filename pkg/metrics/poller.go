package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PollerMetrics covers the simulated field-sensor poller.
type PollerMetrics struct {
	RecordsPublished *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec
	PollDuration     prometheus.Histogram
	ActiveStations   prometheus.Gauge
}

// NewPollerMetrics creates and registers poller metrics.
func NewPollerMetrics(namespace string) *PollerMetrics {
	m := &PollerMetrics{
		RecordsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "records_published_total",
				Help:      "Total number of records published",
			},
			[]string{"type"}, // type: sensor, prediction
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "publish_failures_total",
				Help:      "Total number of failed publishes",
			},
			[]string{"type", "reason"},
		),
		PollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "poll_duration_seconds",
				Help:      "Duration of one poll across all stations",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ActiveStations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "active_stations",
				Help:      "Number of simulated field stations",
			},
		),
	}

	MustRegister(
		m.RecordsPublished,
		m.PublishFailures,
		m.PollDuration,
		m.ActiveStations,
	)

	return m
}
