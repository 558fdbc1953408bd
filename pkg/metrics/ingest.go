package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics covers the queue consumer that feeds upstream records into the store.
type IngestMetrics struct {
	MessagesTotal      *prometheus.CounterVec
	MessageErrors      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ActiveConsumers    prometheus.Gauge
}

// NewIngestMetrics creates and registers ingest metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "messages_total",
				Help:      "Total number of ingested messages",
			},
			[]string{"type", "status"},
		),
		MessageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "errors_total",
				Help:      "Total number of ingest errors",
			},
			[]string{"type", "error_type"}, // error_type: decode, validation, store
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "processing_duration_seconds",
				Help:      "Duration of message processing",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		ActiveConsumers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "active_consumers",
				Help:      "Number of running queue consumers",
			},
		),
	}

	MustRegister(
		m.MessagesTotal,
		m.MessageErrors,
		m.ProcessingDuration,
		m.ActiveConsumers,
	)

	return m
}
