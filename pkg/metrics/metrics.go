// Package metrics provides the Prometheus collectors exported by the AgriNex services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every AgriNex metric name.
const Namespace = "agrinex"

// Registry is the process-wide registry; it is kept apart from the default registry so
// that only AgriNex collectors and the runtime collectors below are exposed.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler exposing Registry in the exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister registers collectors with Registry and panics on a duplicate.
func MustRegister(cs ...prometheus.Collector) {
	Registry.MustRegister(cs...)
}

// StatusLabel maps an error to the "status" label value used across collectors.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
