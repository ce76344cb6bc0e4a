package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/bankclient/internal/infrastructure/config"
	"github.com/cassiomorais/bankclient/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

func newBreaker(name string, cfg config.CircuitBreakerConfig, metrics *observability.Metrics, logger zerolog.Logger) *gobreaker.CircuitBreaker[*Response] {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}

	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: minRequests,
		Interval:    60 * time.Second,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// The caller giving up says nothing about the remote's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			}
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
