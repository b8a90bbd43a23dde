// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttemptsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examprep_attempts_started_total",
		Help: "Attempts returned by StartAttempt, by outcome (created, resumed, daily_exists).",
	}, []string{"outcome"})

	AttemptsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examprep_attempts_submitted_total",
		Help: "SubmitAttempt calls, by outcome (scored, replayed).",
	}, []string{"outcome"})

	ScorePercentage = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "examprep_attempt_score_percentage",
		Help:    "Distribution of completed attempt percentages.",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examprep_store_retries_total",
		Help: "Transactions re-run after a stale write, by operation.",
	}, []string{"op"})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examprep_events_emitted_total",
		Help: "Outbound events, by type and result (ok, error).",
	}, []string{"type", "result"})

	DuplicateDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examprep_duplicate_deliveries_total",
		Help: "Ignored replays of already-applied work, by kind.",
	}, []string{"kind"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "examprep_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	AssignmentsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "examprep_assignments_swept_total",
		Help: "Expired weekly assignments deleted by the sweep.",
	})
)
