// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwsync_tasks_total",
		Help: "Sync tasks finished, by terminal status.",
	}, []string{"status"})

	pendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fwsync_queue_pending",
		Help: "Number of tasks waiting in the sync queue.",
	})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fwsync_task_duration_seconds",
		Help:    "Wall time of finished sync tasks.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	kindFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwsync_kind_failures_total",
		Help: "Per-kind sync failures.",
	}, []string{"kind"})
)

// TaskFinished records a task reaching a terminal status.
func TaskFinished(status string, elapsed time.Duration) {
	tasksTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		taskDuration.Observe(elapsed.Seconds())
	}
}

// SetPendingDepth updates the queue depth gauge.
func SetPendingDepth(n int) {
	pendingDepth.Set(float64(n))
}

// KindFailed counts one failed sync kind attempt.
func KindFailed(kind string) {
	kindFailures.WithLabelValues(kind).Inc()
}
