// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to the games API by endpoint and outcome
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamedex_upstream_requests_total",
			Help: "Requests sent to the upstream games API",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamedex_upstream_request_duration_seconds",
			Help:    "Latency of upstream games API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gamedex_circuit_breaker_state",
			Help: "Upstream circuit breaker state",
		},
		[]string{"name"},
	)

	FavoritesMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamedex_favorites_mutations_total",
			Help: "Favorites collection mutations by operation",
		},
		[]string{"op"},
	)

	FavoritesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamedex_favorites",
			Help: "Games currently in the favorites collection",
		},
	)

	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamedex_favorites_persist_failures_total",
			Help: "Failed writes of the favorites collection",
		},
	)

	// DetailsResults counts settled detail fetches; applied=false means superseded
	DetailsResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamedex_details_results_total",
			Help: "Settled game detail fetches",
		},
		[]string{"applied"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamedex_sessions_active",
			Help: "Browsing sessions currently held in memory",
		},
	)
)
