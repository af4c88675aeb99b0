package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics contains Prometheus metrics for the API server.
type APIMetrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	WebhookPayloadsTotal  *prometheus.CounterVec
	WebhookReadingsStored prometheus.Counter
	StreamClientsActive   prometheus.Gauge
	FeedEventsTotal       *prometheus.CounterVec
	AuthFailuresTotal     *prometheus.CounterVec
}

// NewAPIMetrics creates and registers API server metrics.
func NewAPIMetrics(namespace string) *APIMetrics {
	m := &APIMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		WebhookPayloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "payloads_total",
				Help:      "Total number of sensor webhook payloads",
			},
			[]string{"status"}, // stored, rejected, error
		),
		WebhookReadingsStored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "readings_stored_total",
				Help:      "Total number of sensor readings stored via the webhook",
			},
		),
		StreamClientsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "clients_active",
				Help:      "Number of connected websocket stream clients",
			},
		),
		FeedEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "feed_events_total",
				Help:      "Total number of feed events fanned out to the hub",
			},
			[]string{"topic"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Total number of rejected authentication attempts",
			},
			[]string{"reason"}, // bad_credentials, no_session, expired, forbidden
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.WebhookPayloadsTotal,
		m.WebhookReadingsStored,
		m.StreamClientsActive,
		m.FeedEventsTotal,
		m.AuthFailuresTotal,
	)

	return m
}
