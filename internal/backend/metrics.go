package backend

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for probe outcomes.
const (
	probeAlive = "alive"
	probeDead  = "dead"
)

var probesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "easel_backend_probes_total",
		Help: "Total number of backend liveness probes by outcome.",
	},
	[]string{"backend", "result"},
)

func init() {
	prometheus.MustRegister(probesTotal)
}

func recordProbe(addr string, alive bool) {
	result := probeDead
	if alive {
		result = probeAlive
	}
	probesTotal.WithLabelValues(addr, result).Inc()
}
