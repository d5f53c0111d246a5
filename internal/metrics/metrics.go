package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendAttempts counts single attempts against the inference backend.
	BackendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_backend_attempts_total",
			Help: "Total number of attempts against the inference backend",
		},
		[]string{"operation", "outcome"},
	)

	// BackendLatency tracks the latency of a whole execution including retries.
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coach_backend_latency_seconds",
			Help:    "Backend execution latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// BackendErrors counts failed executions per error category.
	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_backend_errors_total",
			Help: "Total number of failed backend executions",
		},
		[]string{"operation", "category"},
	)

	// Results counts orchestrator results by source.
	Results = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_operation_results_total",
			Help: "Total number of operation results by source",
		},
		[]string{"operation", "source", "reason"},
	)

	// CacheLookups counts response cache lookups.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"operation", "result"},
	)

	// RateLimited counts calls rejected by the admission limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_rate_limited_total",
			Help: "Total number of calls rejected by the rate limiter",
		},
		[]string{"operation"},
	)

	// Degradation exposes the current degradation level (0 none, 1 partial, 2 severe)
	// of each health monitor.
	Degradation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coach_backend_degradation_level",
			Help: "Current backend degradation level: 0 none, 1 partial, 2 severe",
		},
		[]string{"monitor"},
	)

	// Probes counts active health probes by outcome.
	Probes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_health_probes_total",
			Help: "Total number of active health probes",
		},
		[]string{"outcome"},
	)
)
