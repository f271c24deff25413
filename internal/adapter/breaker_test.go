package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobpulse/internal/model"
)

type failingFetcher struct {
	calls int
}

func (f *failingFetcher) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	f.calls++
	return nil, &model.HTTPError{StatusCode: 500}
}

func TestBreakerFetcher_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingFetcher{}
	f := NewBreakerFetcher(inner, "adzuna", time.Minute)
	q := model.Query{Keyword: "Analytics", Location: "Texas"}

	for i := 0; i < 5; i++ {
		if _, err := f.Fetch(context.Background(), q); err == nil {
			t.Fatal("expected error from failing fetcher")
		}
	}
	if inner.calls != 5 {
		t.Fatalf("inner calls = %d, want 5", inner.calls)
	}

	// Breaker is now open: the inner fetcher must not be reached.
	_, err := f.Fetch(context.Background(), q)
	if err == nil {
		t.Fatal("expected open-breaker error")
	}
	var te *model.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("open breaker should be transient, got %T: %v", err, err)
	}
	if inner.calls != 5 {
		t.Errorf("inner calls = %d after open breaker, want 5", inner.calls)
	}
}
