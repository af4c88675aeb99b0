package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the ingest service.
type IngestMetrics struct {
	MessagesTotal        *prometheus.CounterVec
	ProcessingDuration   *prometheus.HistogramVec
	AlertsRaisedTotal    *prometheus.CounterVec
	LocationUpdatesTotal prometheus.Counter
	ActiveConsumers      prometheus.Gauge
}

// NewIngestMetrics creates and registers ingest service metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "messages_total",
				Help:      "Total number of messages consumed",
			},
			[]string{"queue", "status"}, // status: success, dropped, error
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "processing_duration_seconds",
				Help:      "Duration of message processing",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"queue"},
		),
		AlertsRaisedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "raised_total",
				Help:      "Total number of threshold alerts raised",
			},
			[]string{"reading_type", "direction"},
		),
		LocationUpdatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fleet",
				Name:      "location_updates_total",
				Help:      "Total number of vehicle location updates applied",
			},
		),
		ActiveConsumers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "consumer",
				Name:      "active_consumers",
				Help:      "Number of active message consumers",
			},
		),
	}

	MustRegister(
		m.MessagesTotal,
		m.ProcessingDuration,
		m.AlertsRaisedTotal,
		m.LocationUpdatesTotal,
		m.ActiveConsumers,
	)

	return m
}
