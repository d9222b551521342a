// Package metrics registers the Prometheus instruments for the privacy core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DeletionsStarted   prometheus.Counter
	DeletionsCompleted prometheus.Counter
	DeletionsFailed    prometheus.Counter
	DeletionStepSecs   *prometheus.HistogramVec

	ExportsRequested   prometheus.Counter
	ExportsBuilt       prometheus.Counter
	ExportsRateLimited prometheus.Counter

	RecordsAnonymized *prometheus.CounterVec
	WalkErrors        *prometheus.CounterVec

	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DeletionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_privacy_deletions_started_total",
			Help: "Deletion pipelines accepted for processing",
		}),
		DeletionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_privacy_deletions_completed_total",
			Help: "Deletion pipelines that reached the completed state",
		}),
		DeletionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_privacy_deletions_failed_total",
			Help: "Deletion pipelines that reached the failed state",
		}),
		DeletionStepSecs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memberhub_privacy_deletion_step_duration_seconds",
			Help:    "Latency of individual deletion pipeline steps",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step"}),
		ExportsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_privacy_exports_requested_total",
			Help: "Export requests accepted for processing",
		}),
		ExportsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_privacy_exports_built_total",
			Help: "Export bundles built and uploaded",
		}),
		ExportsRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_privacy_exports_rate_limited_total",
			Help: "Export requests rejected by the rolling rate limit",
		}),
		RecordsAnonymized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_privacy_records_anonymized_total",
			Help: "Records anonymized by the collection walker",
		}, []string{"resource_type"}),
		WalkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_privacy_walk_errors_total",
			Help: "Per-record failures collected during collection walks",
		}, []string{"resource_type"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memberhub_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
