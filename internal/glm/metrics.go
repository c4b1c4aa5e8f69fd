package glm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fit-level metrics, registered once on the default Prometheus registry and
// served by the HTTP server's /metrics endpoint.
var (
	fitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parglm_fits_total",
			Help: "Total number of GLM fits by family and outcome.",
		},
		[]string{"family", "status"},
	)

	fitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parglm_fit_duration_seconds",
			Help:    "Wall-clock duration of GLM fits.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"family"},
	)

	fitIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parglm_fit_iterations",
			Help:    "Number of IRLS iterations per fit.",
			Buckets: prometheus.LinearBuckets(1, 2, 13),
		},
		[]string{"family"},
	)

	blockTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parglm_block_tasks_total",
			Help: "Block tasks submitted to the executor, by phase.",
		},
		[]string{"phase"},
	)
)

// Fit outcome labels.
const (
	statusConverged    = "converged"
	statusNotConverged = "not_converged"
	statusFailed       = "failed"
)
