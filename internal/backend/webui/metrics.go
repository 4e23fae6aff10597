package webui

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for render request outcomes.
const (
	outcomeOK          = "ok"
	outcomeRequestErr  = "request_error"
	outcomeDecodeError = "decode_error"
)

var (
	renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "easel_webui_render_seconds",
			Help:    "Duration of txt2img requests against a WebUI backend, in seconds.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	rendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_webui_renders_total",
			Help: "Total number of txt2img requests by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(renderDuration)
	prometheus.MustRegister(rendersTotal)
}
