package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/tbourn/go-persian-chat/internal/config"
	"github.com/tbourn/go-persian-chat/internal/observability"
)

const breakerName = "upstream"

func newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker {
	minReq := cfg.MinRequests
	if minReq == 0 {
		minReq = 5
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	st := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minReq {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// Caller cancellations and client-side request errors say nothing
		// about provider health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingCredential) {
				return true
			}
			var he *HTTPError
			if errors.As(err, &he) {
				return !he.Retryable()
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			observability.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	observability.BreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker(st)
}

// mapBreakerErr turns gobreaker's rejection errors into ErrCircuitOpen.
func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
