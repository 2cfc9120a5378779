package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal tracks completed pipeline runs by outcome
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_analyses_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"outcome"},
	)

	// BackendCallsTotal tracks AI backend calls per provider and operation
	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_backend_calls_total",
			Help: "Total number of AI backend calls",
		},
		[]string{"provider", "operation"},
	)

	// BackendErrorsTotal tracks AI backend errors per provider and kind
	BackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_backend_errors_total",
			Help: "Total number of AI backend errors",
		},
		[]string{"provider", "kind"},
	)

	// BackendLatency tracks AI backend call latency
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyzer_backend_latency_seconds",
			Help:    "AI backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// FailoversTotal counts primary-to-secondary provider failovers
	FailoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyzer_failovers_total",
			Help: "Total number of provider failovers",
		},
	)

	// BreakerState exposes the circuit breaker state per provider
	// (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analyzer_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	// CacheHitsTotal tracks cache hits per cache kind
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// StagesSkippedTotal counts stages skipped by their predicates
	StagesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_stages_skipped_total",
			Help: "Total number of stages skipped by shouldRun predicates",
		},
		[]string{"stage"},
	)

	// QuotaDenialsTotal counts calls denied by quota admission
	QuotaDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_quota_denials_total",
			Help: "Total number of calls denied by quota admission",
		},
		[]string{"provider"},
	)
)
