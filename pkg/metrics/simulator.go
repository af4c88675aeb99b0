package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the fleet simulator.
type SimulatorMetrics struct {
	PayloadsGenerated  *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ActiveProducers    prometheus.Gauge
	SensorsSimulated   prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		PayloadsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "payloads_generated_total",
				Help:      "Total number of payloads generated",
			},
			[]string{"kind"}, // sensor_reading, location_ping
		),
		GenerationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_failures_total",
				Help:      "Total number of failed payload generations",
			},
			[]string{"kind", "reason"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_duration_seconds",
				Help:      "Duration of payload generation and publish",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ActiveProducers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_producers",
				Help:      "Number of active producers",
			},
		),
		SensorsSimulated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "sensors_simulated",
				Help:      "Number of simulated sensors",
			},
		),
	}

	MustRegister(
		m.PayloadsGenerated,
		m.GenerationFailures,
		m.GenerationDuration,
		m.ActiveProducers,
		m.SensorsSimulated,
	)

	return m
}
