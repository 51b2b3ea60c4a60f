// Package observability holds the Prometheus metrics of the server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "carshare"

var (
	MatchScans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "match_scans_total", Help: "Matching scans started",
	})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "match_latency_seconds", Help: "Duration of a full matching scan",
		Buckets: prometheus.DefBuckets,
	})
	MatchCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "match_candidates_total", Help: "Candidates by scan outcome"},
		[]string{"outcome"},
	)

	HandshakeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "handshake_transitions_total", Help: "Handshake transitions by target state and result"},
		[]string{"state", "result"},
	)

	TileBitmaskLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "tile_bitmask_seconds", Help: "Time to compute a route's tile bitmask",
		Buckets: prometheus.DefBuckets,
	})
	RouteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "route_cache_lookups_total", Help: "Route cache lookups by result"},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Candidate scan outcomes.
const (
	OutcomeMatched   = "matched"
	OutcomeEnded     = "ended"
	OutcomeSeats     = "seats"
	OutcomeTiles     = "tiles"
	OutcomeStale     = "stale_grid"
	OutcomeFeatures  = "features"
	OutcomeProximity = "proximity"
	OutcomeUpstream  = "upstream_error"
)
