package model

import (
	"context"
	"time"
)

// RawPosting is a job listing exactly as fetched from a source API.
// Keyed by (Source, JobID); re-fetching the same key overwrites the row.
type RawPosting struct {
	Source      string     // source API name, e.g. "adzuna"
	JobID       string     // unique within the source
	FetchedAt   time.Time  // our clock at fetch time
	PostedAt    *time.Time // nullable (not all sources provide this)
	Title       string
	Company     string
	Location    string // raw location string as given by the source
	Description string
	URL         string
	SalaryMin   *float64
	SalaryMax   *float64
	RawPayload  []byte // full per-job JSON from the source, kept opaque
	QueryState  string // the state the fetch query targeted, location fallback
}

// Validate reports why the posting cannot be keyed, or nil when it can.
// Failures are ValidationErrors: the record is skipped and counted at the
// ingestion boundary, never aborting the batch.
func (p RawPosting) Validate() error {
	if p.Source == "" {
		return &ValidationError{Field: "source", Reason: "is empty"}
	}
	if p.JobID == "" {
		return &ValidationError{Field: "job_id", Reason: "is empty"}
	}
	return nil
}

// CleanPosting is the normalized form of exactly one RawPosting.
type CleanPosting struct {
	JobID       string
	Source      string
	FetchedAt   time.Time // copied from the raw row, drives change detection
	PostedAt    *time.Time
	Title       string
	Company     string
	LocationRaw string
	City        *string
	State       *string
	URL         string
	SalaryMin   *float64
	SalaryMax   *float64
	SalaryMid   *float64
	Description string // markup stripped, whitespace collapsed
}

// PostingFeatures holds features derived from one CleanPosting.
type PostingFeatures struct {
	JobID              string
	ExtractedAt        time.Time
	State              *string
	City               *string
	RoleFamily         string // "Other" when no rule matches
	Seniority          string // "Mid" when no rule matches
	IsRemote           bool
	YearsExperienceMin *int
	Skills             []string // canonical skill names, vocabulary order
	SkillsCount        int
	TopSkills          []string // ranked subset of Skills
}

// MetricKey identifies one daily aggregate row.
type MetricKey struct {
	Date       string // YYYY-MM-DD
	State      string // empty string groups the unparsed-state bucket
	RoleFamily string
}

// DailyMetric is a fully derived aggregate over PostingFeatures joined with
// CleanPosting. Recomputed by replacement, never patched in place.
type DailyMetric struct {
	Key          MetricKey
	JobsPosted   int
	AvgSalary    *float64
	MedianSalary *float64
}

// Run statuses recorded in pipeline_runs.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunRecord is one pipeline invocation's lifecycle entry. Created at run
// start, mutated exactly once at run end, never deleted.
type RunRecord struct {
	RunID         int64
	PipelineName  string
	StartedAt     time.Time
	EndedAt       *time.Time
	Status        string
	RowsProcessed int
	Error         *string
}

// Alert is one monitoring finding persisted for the BI layer.
type Alert struct {
	DetectedAt time.Time
	Type       string // "freshness", "volume", "null_state"
	Severity   string // "HIGH", "MEDIUM", "LOW"
	Details    string
}

// Query describes one fetch against the upstream posting API.
type Query struct {
	Keyword  string
	Location string // US state name
}

// PostingFetcher fetches raw postings for a single query.
// Adapters, the circuit breaker, and the retry decorator all implement it.
type PostingFetcher interface {
	Fetch(ctx context.Context, q Query) ([]RawPosting, error)
}
