package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"jobpulse/internal/model"
)

// BreakerFetcher guards a PostingFetcher with a circuit breaker: after
// repeated upstream failures it fails fast instead of hammering the API.
type BreakerFetcher struct {
	inner model.PostingFetcher
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerFetcher wraps a fetcher with a circuit breaker. The breaker opens
// after five consecutive failures and probes again after the cooldown.
func NewBreakerFetcher(inner model.PostingFetcher, name string, cooldown time.Duration) *BreakerFetcher {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &BreakerFetcher{inner: inner, cb: cb}
}

// Fetch delegates to the wrapped fetcher through the breaker. An open breaker
// surfaces as a transient error so the stage retry policy backs off rather
// than aborting the run outright.
func (f *BreakerFetcher) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	out, err := f.cb.Execute(func() (any, error) {
		return f.inner.Fetch(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &model.TransientError{Err: fmt.Errorf("circuit breaker %s: %w", f.cb.Name(), err)}
		}
		return nil, err
	}
	return out.([]model.RawPosting), nil
}
