// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Matching engine collectors.
var (
	QuotaReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_quota_reservations_total",
			Help: "Quota reservations by provider and outcome (granted, denied, refunded)",
		},
		[]string{"provider", "outcome"},
	)

	QuotaRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "match_quota_remaining",
			Help: "Remaining quota units in the current daily window",
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_lookups_total",
			Help: "Tiered cache lookups by tier and outcome (hit, miss, expired, error)",
		},
		[]string{"tier", "outcome"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_evictions_total",
			Help: "Entries removed by the sweeper or the size cap",
		},
		[]string{"reason"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_provider_calls_total",
			Help: "External provider calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_provider_call_duration_seconds",
			Help:    "External provider call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	StyleAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_style_analyses_total",
			Help: "Style analyses by the source that produced the signals",
		},
		[]string{"source"},
	)

	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_analysis_runs_total",
			Help: "Analysis runs by outcome (computed, cached, stored, error kind)",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_analysis_duration_seconds",
			Help:    "Wall time of computed analysis runs",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	MatchesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_results_returned",
			Help:    "Number of matches in each computed analysis record",
			Buckets: []float64{0, 1, 3, 5, 10, 15, 20, 50},
		},
	)
)

// HTTP API collectors.
var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_api_requests_total",
			Help: "HTTP API requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
