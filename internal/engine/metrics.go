package engine

import "github.com/prometheus/client_golang/prometheus"

// Task and batch outcome label values.
const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeInterrupted = "interrupted"
	outcomeCompleted   = "completed"
	outcomeUnavailable = "unavailable"
)

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_tasks_total",
			Help: "Total number of attempted render tasks by outcome.",
		},
		[]string{"outcome"},
	)

	tasksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "easel_tasks_in_flight",
			Help: "Number of render tasks currently executing.",
		},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "easel_task_duration_seconds",
			Help:    "Render task duration in seconds, including the artifact write.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easel_batches_total",
			Help: "Total number of batches by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	paramsLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "easel_params_log_failures_total",
			Help: "Total number of successful tasks whose parameter record could not be logged.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(tasksInFlight)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(batchesTotal)
	prometheus.MustRegister(paramsLogFailuresTotal)
}
