package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobpulse/internal/model"
)

func testAdapter(srv *httptest.Server) *AdzunaAdapter {
	a := NewAdzunaAdapter("test-id", "test-key", Options{
		BaseURL:        srv.URL,
		Country:        "us",
		SourceName:     "adzuna",
		ResultsPerPage: 50,
		SortBy:         "date",
	})
	a.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestFetch_Success(t *testing.T) {
	payload := `{
		"results": [
			{
				"id": "111",
				"title": "Data Analyst",
				"company": {"display_name": "Acme"},
				"location": {"display_name": "Austin, TX"},
				"description": "<p>SQL dashboards</p>",
				"created": "2026-08-29T09:00:00Z",
				"redirect_url": "https://example.com/111",
				"salary_min": 50000,
				"salary_max": 70000
			},
			{
				"id": 222,
				"title": "BI Developer",
				"company": {"display_name": "Globex"},
				"location": {"display_name": "Dallas, Texas"},
				"description": "Tableau",
				"redirect_url": "https://example.com/222"
			}
		]
	}`
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	a := testAdapter(srv)
	postings, err := a.Fetch(context.Background(), model.Query{Keyword: "Data Analyst", Location: "Texas"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.JobID != "111" {
		t.Errorf("JobID = %q, want 111", p.JobID)
	}
	if p.Company != "Acme" || p.Location != "Austin, TX" {
		t.Errorf("posting = %+v", p)
	}
	if p.PostedAt == nil || !p.PostedAt.Equal(time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("PostedAt = %v", p.PostedAt)
	}
	if p.SalaryMin == nil || *p.SalaryMin != 50000 {
		t.Errorf("SalaryMin = %v", p.SalaryMin)
	}
	if p.QueryState != "Texas" {
		t.Errorf("QueryState = %q", p.QueryState)
	}
	if len(p.RawPayload) == 0 {
		t.Error("RawPayload is empty")
	}

	// Numeric id normalizes to a string; missing salary stays nil.
	if postings[1].JobID != "222" {
		t.Errorf("numeric id JobID = %q, want 222", postings[1].JobID)
	}
	if postings[1].SalaryMin != nil {
		t.Errorf("SalaryMin = %v, want nil", postings[1].SalaryMin)
	}
	if postings[1].PostedAt != nil {
		t.Errorf("PostedAt = %v, want nil", postings[1].PostedAt)
	}

	for _, want := range []string{"what=Data+Analyst", "where=Texas", "results_per_page=50", "app_id=test-id"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := testAdapter(srv)
	_, err := a.Fetch(context.Background(), model.Query{Keyword: "Analytics", Location: "Texas"})
	if err == nil {
		t.Fatal("expected error for 429")
	}

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 120*time.Second {
		t.Errorf("RetryAfter = %v, want 2m", httpErr.RetryAfter)
	}
	if !model.IsTransient(err) {
		t.Error("429 should be transient")
	}
}

func TestFetch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := testAdapter(srv)
	_, err := a.Fetch(context.Background(), model.Query{Keyword: "Analytics", Location: "Texas"})
	if !model.IsTransient(err) {
		t.Errorf("502 should be transient, got %v", err)
	}
}

func TestFetch_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := testAdapter(srv)
	_, err := a.Fetch(context.Background(), model.Query{Keyword: "Analytics", Location: "Texas"})
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if model.IsTransient(err) {
		t.Errorf("401 should not be transient, got %v", err)
	}
}
