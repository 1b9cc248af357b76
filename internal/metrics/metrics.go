package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "video2music"

// Pipeline metrics
var (
	// PipelineRuns counts processing attempts by mode and outcome.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of processing attempts",
		},
		[]string{"mode", "outcome"},
	)

	// PipelineDuration tracks the wall time of one processing attempt.
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time taken by one processing attempt",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{"mode"},
	)

	// ActivePipelines tracks the number of attempts in flight.
	ActivePipelines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pipelines",
			Help:      "Number of processing attempts in flight",
		},
	)

	// StageDuration tracks analysis stage latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "stage_duration_seconds",
			Help:      "Time taken by each analysis stage",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// DispatchFailures counts jobs that could not be handed to a worker.
	DispatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Total number of jobs that could not be dispatched",
		},
	)
)

// Catalog metrics
var (
	// CatalogSearches counts catalog searches by outcome.
	CatalogSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "searches_total",
			Help:      "Total number of catalog searches",
		},
		[]string{"outcome"},
	)

	// CatalogTracks tracks how many tracks a search returned.
	CatalogTracks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "tracks_returned",
			Help:      "Number of tracks returned per catalog search",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthFailures counts authentication failures by type.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// UploadsRejected counts uploads refused by validation, by reason.
	UploadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "uploads_rejected_total",
			Help:      "Total number of uploads rejected by validation",
		},
		[]string{"reason"},
	)

	// UploadsCompleted counts videos stored and turned into requests.
	UploadsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "uploads_completed_total",
			Help:      "Total number of uploads completed",
		},
	)
)

// RecordRun records the outcome of one processing attempt.
func RecordRun(mode string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	PipelineRuns.WithLabelValues(mode, outcome).Inc()
}

// RecordSearch records a catalog search and the number of tracks it produced.
func RecordSearch(outcome string, tracks int) {
	CatalogSearches.WithLabelValues(outcome).Inc()
	CatalogTracks.Observe(float64(tracks))
}
