package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ValidationError marks a malformed input record. Such records are skipped
// and counted; they never abort a batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// TransientError marks a failure worth retrying (network, timeout, rate
// limit). Non-HTTP transport errors from the adapter are wrapped in it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ConcurrentRunError is returned when another run for the same pipeline is
// already in progress. Callers fail fast; there is no retry.
type ConcurrentRunError struct {
	PipelineName string
	RunID        int64
	StartedAt    time.Time
}

func (e *ConcurrentRunError) Error() string {
	return fmt.Sprintf("pipeline %q already running (run %d, started %s)",
		e.PipelineName, e.RunID, e.StartedAt.Format(time.RFC3339))
}

// IsTransient reports whether err represents a failure worth retrying.
// Context cancellation is never transient. HTTP 429 and 5xx are; other HTTP
// statuses are not. Anything wrapped in TransientError is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		return httpErr.StatusCode >= 500
	}

	return false
}
