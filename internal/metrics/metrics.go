// Package metrics provides Prometheus metrics for the lipsync pipeline and daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// commandExecutionTotal counts external process invocations.
	// Labels:
	//   - command: binary base name (e.g. "ffmpeg", "python3")
	//   - status: "success", "failed", "timeout" or "canceled"
	commandExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lipsync_command_executions_total",
			Help: "Total number of external command executions",
		},
		[]string{"command", "status"},
	)

	// commandExecutionDuration records external process wall time.
	// Buckets: 0.1s up to 30 minutes; inference calls dominate the upper range.
	commandExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lipsync_command_duration_seconds",
			Help:    "Duration of external command executions in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"command"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lipsync_jobs_total",
			Help: "Total number of finished conversion jobs by outcome",
		},
		[]string{"status", "kind"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lipsync_job_duration_seconds",
			Help:    "End-to-end duration of conversion jobs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	segmentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lipsync_segments_processed_total",
			Help: "Total number of segments that completed inference",
		},
	)

	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lipsync_jobs_active",
			Help: "Number of conversion jobs currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(commandExecutionTotal)
	prometheus.MustRegister(commandExecutionDuration)
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(segmentsProcessed)
	prometheus.MustRegister(jobsActive)
}

// RecordCommandExecution records one external command run.
func RecordCommandExecution(command, status string, elapsed time.Duration) {
	commandExecutionTotal.WithLabelValues(command, status).Inc()
	commandExecutionDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// RecordSegmentProcessed increments the completed segment counter.
func RecordSegmentProcessed() {
	segmentsProcessed.Inc()
}

// JobStarted marks a job as running and returns a func that records its outcome.
// kind is empty for successful jobs.
func JobStarted() func(status, kind string) {
	start := time.Now()
	jobsActive.Inc()
	return func(status, kind string) {
		jobsActive.Dec()
		jobsTotal.WithLabelValues(status, kind).Inc()
		jobDuration.Observe(time.Since(start).Seconds())
	}
}
