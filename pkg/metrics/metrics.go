// Package metrics provides performance tracking and observability for Hearth
// using Prometheus metrics. It exposes counters and histograms for upstream
// source calls, job executions, and sync batches.
//
// Counter: Monotonically increasing values (e.g., total source requests)
// Gauge: Values that can go up or down (e.g., active jobs)
// Histogram: Distribution of values (e.g., call latency percentiles)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceRequests tracks upstream connector call attempts.
	// Labels: source (connector name), operation, status (success/failure)
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_source_requests_total",
			Help: "Total number of upstream source call attempts",
		},
		[]string{"source", "operation", "status"},
	)

	// SourceLatency tracks the distribution of upstream call latencies.
	// Labels: source, operation
	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hearth_source_latency_seconds",
			Help:    "Upstream source call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	// JobsTotal tracks completed job executions by terminal status.
	// Labels: plugin, status (completed/failed)
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_jobs_total",
			Help: "Total number of job executions by terminal status",
		},
		[]string{"plugin", "status"},
	)

	// ActiveJobs tracks the number of currently running jobs
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hearth_active_jobs",
			Help: "Number of jobs currently pending or running",
		},
	)

	// RecordsUpserted tracks property records written to the store.
	// Labels: result (created/updated/failed)
	RecordsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_records_upserted_total",
			Help: "Total number of property records written to the store",
		},
		[]string{"result"},
	)

	// RecordsDeduplicated tracks records dropped by deduplication.
	// Labels: mode (strict/fuzzy)
	RecordsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hearth_records_deduplicated_total",
			Help: "Total number of records dropped as duplicates",
		},
		[]string{"mode"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("sync_batch")
//	runBatch(records)
//	duration := timer.Stop()
//	logger.Info("batch finished", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveSourceCall records one connector call attempt: the request counter
// with its outcome label plus the latency histogram.
func ObserveSourceCall(source, operation string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	SourceRequests.WithLabelValues(source, operation, status).Inc()
	SourceLatency.WithLabelValues(source, operation).Observe(latency.Seconds())
}
