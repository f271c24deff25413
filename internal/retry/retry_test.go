package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"jobpulse/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(maxAttempts int) Policy {
	return NewPolicy(maxAttempts, 10*time.Millisecond, discardLogger())
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := testPolicy(3).Do(context.Background(), "stage", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	err := testPolicy(3).Do(context.Background(), "stage", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttemptsOnPersistentTransient(t *testing.T) {
	calls := 0
	err := testPolicy(3).Do(context.Background(), "stage", func(ctx context.Context) error {
		calls++
		return &model.TransientError{Err: errors.New("timeout")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_DoesNotRetryNonTransient(t *testing.T) {
	calls := 0
	wantErr := &model.HTTPError{StatusCode: 401}
	err := testPolicy(3).Do(context.Background(), "stage", func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := NewPolicy(5, time.Hour, discardLogger()) // long delay: cancel wins

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, "stage", func(ctx context.Context) error {
		calls++
		return &model.TransientError{Err: errors.New("flaky")}
	})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := testPolicy(2).Do(context.Background(), "stage", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &model.HTTPError{StatusCode: 429, RetryAfter: 50 * time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("retried after %v, want at least the Retry-After value", elapsed)
	}
}

type flakyFetcher struct {
	calls int
}

func (f *flakyFetcher) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	f.calls++
	if f.calls == 1 {
		return nil, &model.HTTPError{StatusCode: 500}
	}
	return []model.RawPosting{{Source: "adzuna", JobID: "1"}}, nil
}

func TestFetcher_RetriesAndReturnsPostings(t *testing.T) {
	inner := &flakyFetcher{}
	f := NewFetcher(inner, testPolicy(3))

	postings, err := f.Fetch(context.Background(), model.Query{Keyword: "Analytics", Location: "Texas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 || postings[0].JobID != "1" {
		t.Fatalf("postings = %v", postings)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
}
