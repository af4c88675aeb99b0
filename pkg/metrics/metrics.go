// Package metrics provides Prometheus metrics collection for the opsdash
// services. Each service creates its own typed collector set (API, ingest,
// simulator) against the shared registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide Prometheus registry. Collectors register
// once; creating a service's metric set twice in one process panics.
var Registry = prometheus.NewRegistry()

func init() {
	// Register default Go metrics collectors
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler exposing the registry, mounted on the API
// router and the ingest metrics listener.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister registers collectors with the process-wide registry.
// Panics if registration fails.
func MustRegister(collectors ...prometheus.Collector) {
	Registry.MustRegister(collectors...)
}
