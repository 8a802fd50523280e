// Package observability holds the Prometheus metrics for the negotiation
// and settlement pipeline. Metrics are package-level promauto collectors;
// the API server exposes them on /metrics when enabled.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Negotiation Metrics ────────────────────────────────────────────────────

// NegotiationsTotal counts terminal negotiation sessions by outcome state.
var NegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "haggle",
	Subsystem: "negotiation",
	Name:      "sessions_total",
	Help:      "Total negotiation sessions by terminal state.",
}, []string{"state"})

// NegotiationTurns tracks transcript length at session end.
var NegotiationTurns = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "haggle",
	Subsystem: "negotiation",
	Name:      "turns",
	Help:      "Number of turns per terminal negotiation session.",
	Buckets:   []float64{1, 2, 4, 6, 8, 12, 16, 24, 32},
})

// ─── Settlement Metrics ─────────────────────────────────────────────────────

// SettlementsTotal counts settlement attempts by final result.
var SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "haggle",
	Subsystem: "settlement",
	Name:      "settlements_total",
	Help:      "Total settlements by result (committed, rejected, conflict_exhausted).",
}, []string{"result"})

// SettlementConflicts counts optimistic-concurrency conflicts that forced a
// re-read.
var SettlementConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "haggle",
	Subsystem: "settlement",
	Name:      "conflicts_total",
	Help:      "Total commit-time conflicts detected (each triggers a fresh read).",
})

// SettlementDuration tracks wall time of the whole settle call, retries
// included.
var SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "haggle",
	Subsystem: "settlement",
	Name:      "duration_seconds",
	Help:      "Settlement duration in seconds, including conflict retries.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
})
