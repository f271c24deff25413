package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"jobpulse/internal/model"
)

// Policy is the single retry policy applied to every pipeline stage:
// exponential backoff with jitter on transient errors, up to a fixed number
// of attempts.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the first retry, doubled each time
	Logger      *slog.Logger
}

// NewPolicy builds a Policy with sane floors.
func NewPolicy(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, Logger: logger}
}

// Do runs fn, retrying transient failures. Non-transient errors and context
// cancellation return immediately; exhausting the attempts returns the last
// transient error.
func (p Policy) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !model.IsTransient(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		p.Logger.Warn("retrying after transient error",
			"stage", label,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: retry cancelled: %w", label, ctx.Err())
		case <-time.After(delay):
		}

		err = fn(ctx)
		if err == nil || !model.IsTransient(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	// Apply ±30% jitter
	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// Fetcher decorates a PostingFetcher with the policy, so adapters retry
// per-query without each call site repeating the loop.
type Fetcher struct {
	inner  model.PostingFetcher
	policy Policy
}

// NewFetcher wraps a PostingFetcher with retry logic.
func NewFetcher(inner model.PostingFetcher, policy Policy) *Fetcher {
	return &Fetcher{inner: inner, policy: policy}
}

// Fetch attempts the fetch, retrying on transient errors.
func (f *Fetcher) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	var postings []model.RawPosting
	err := f.policy.Do(ctx, fmt.Sprintf("fetch %s/%s", q.Keyword, q.Location), func(ctx context.Context) error {
		var err error
		postings, err = f.inner.Fetch(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return postings, nil
}
