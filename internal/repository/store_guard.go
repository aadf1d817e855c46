package repository

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"go.uber.org/zap"
)

// GuardConfig tunes the protection placed in front of the telemetry store.
type GuardConfig struct {
	MaxConcurrent   int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// StoreGuard bounds concurrent store reads and stops hammering a failing store.
// Reads are never retried here; a failed read surfaces to the caller as is.
type StoreGuard struct {
	breaker  circuitbreaker.CircuitBreaker[struct{}]
	bulkhead bulkhead.Bulkhead[struct{}]
	logger   *zap.Logger
}

// NewStoreGuard builds a guard. Zero values disable the corresponding protection.
func NewStoreGuard(cfg GuardConfig, logger *zap.Logger) *StoreGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &StoreGuard{logger: logger}

	if cfg.BreakerFailures > 0 {
		timeout := cfg.BreakerTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		failures := cfg.BreakerFailures
		g.breaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     timeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= failures
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				g.logger.Warn("telemetry store breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	if cfg.MaxConcurrent > 0 {
		g.bulkhead = bulkhead.New[struct{}](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxConcurrent * 4,
			QueueTimeout:  10 * time.Second,
		})
	}

	return g
}

// Do runs fn under the configured protections. A nil guard runs fn directly.
func (g *StoreGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	operation := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}
	if g == nil {
		_, err := operation(ctx)
		return err
	}

	if g.bulkhead != nil {
		inner := operation
		operation = func(ctx context.Context) (struct{}, error) {
			return g.bulkhead.Execute(ctx, inner)
		}
	}

	if g.breaker != nil {
		_, err := g.breaker.Execute(ctx, operation)
		return err
	}

	_, err := operation(ctx)
	return err
}
