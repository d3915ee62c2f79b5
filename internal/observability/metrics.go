package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Relay modes and outcomes used as metric labels.
const (
	ModeBuffered = "buffered"
	ModeStream   = "stream"

	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"    // validation or identity failure, nothing written
	OutcomeUpstream    = "upstream"    // provider failed, user turn kept
	OutcomeInterrupted = "interrupted" // stream ended early
	OutcomeCancelled   = "cancelled"   // caller went away
	OutcomeError       = "error"       // storage or lock failure
	OutcomeReplayed    = "replayed"    // idempotent replay
)

var (
	// RelayTurns counts relay calls by mode and outcome.
	RelayTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_turns_total",
			Help: "Relay calls by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	// UpstreamLatency records provider call duration. For streams it covers
	// the time to the final chunk.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_upstream_duration_seconds",
			Help:    "Duration of upstream completion calls in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"mode", "outcome"},
	)

	// StreamChunks counts text deltas forwarded to clients.
	StreamChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stream_chunks_total",
			Help: "Text deltas forwarded on streamed relays.",
		},
	)

	// BreakerState exposes the provider circuit breaker state
	// (0 closed, 1 half-open, 2 open).
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_upstream_breaker_state",
			Help: "Circuit breaker state for the upstream provider (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(RelayTurns, UpstreamLatency, StreamChunks, BreakerState)
}
