package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics covers the data store gateway.
type StoreMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RecordsAppended   *prometheus.CounterVec
	ValidationErrors  *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics.
func NewStoreMetrics(namespace string) *StoreMetrics {
	m := &StoreMetrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"operation", "kind", "status"}, // operation: append, query, clear
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of store operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "kind"},
		),
		RecordsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "records_appended_total",
				Help:      "Total number of records appended",
			},
			[]string{"kind"},
		),
		ValidationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "validation_errors_total",
				Help:      "Total number of records rejected by validation",
			},
			[]string{"kind", "field"},
		),
	}

	MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.RecordsAppended,
		m.ValidationErrors,
	)

	return m
}
