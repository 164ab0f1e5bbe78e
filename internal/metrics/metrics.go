package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpinsights_job_runs_total",
			Help: "Job invocations by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpinsights_job_duration_seconds",
			Help:    "Duration of job invocations in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	MediaUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rpinsights_media_upserted_total",
			Help: "Media records written by media sync",
		},
	)

	SnapshotsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rpinsights_account_snapshots_upserted_total",
			Help: "Account daily snapshots written by the insights job",
		},
	)

	FollowerCaptures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpinsights_follower_captures_total",
			Help: "Follower samples captured, by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpinsights_upstream_requests_total",
			Help: "Graph API requests by endpoint and error kind (ok on success)",
		},
		[]string{"endpoint", "kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rpinsights_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpinsights_cache_lookups_total",
			Help: "Freshness cache lookups by result",
		},
		[]string{"result"},
	)

	NotModified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpinsights_not_modified_total",
			Help: "Conditional reads answered with 304",
		},
		[]string{"route"},
	)
)
