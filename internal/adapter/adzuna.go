package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobpulse/internal/model"
)

// adzunaResult is a single job in the Adzuna search response. Each result is
// decoded from its own raw message so the full payload can be kept opaque.
type adzunaResult struct {
	ID          flexID        `json:"id"`
	Title       string        `json:"title"`
	Company     adzunaDisplay `json:"company"`
	Location    adzunaDisplay `json:"location"`
	Description string        `json:"description"`
	Created     string        `json:"created"`
	RedirectURL string        `json:"redirect_url"`
	SalaryMin   *float64      `json:"salary_min"`
	SalaryMax   *float64      `json:"salary_max"`
}

type adzunaDisplay struct {
	DisplayName string `json:"display_name"`
}

// adzunaResponse is the top-level Adzuna search API response.
type adzunaResponse struct {
	Results []json.RawMessage `json:"results"`
}

// flexID tolerates Adzuna returning job ids as either strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("job id is neither string nor number: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

// AdzunaAdapter fetches postings from the Adzuna jobs search API.
type AdzunaAdapter struct {
	baseURL    string // e.g. https://api.adzuna.com/v1/api/jobs
	country    string
	appID      string
	appKey     string
	sourceName string
	perPage    int
	sortBy     string
	client     *http.Client
	now        func() time.Time // injectable for tests
}

// Options tune an AdzunaAdapter beyond its credentials.
type Options struct {
	BaseURL        string
	Country        string
	SourceName     string
	ResultsPerPage int
	SortBy         string
	Timeout        time.Duration
}

// NewAdzunaAdapter creates an adapter for the Adzuna search API.
func NewAdzunaAdapter(appID, appKey string, opts Options) *AdzunaAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perPage := opts.ResultsPerPage
	if perPage <= 0 {
		perPage = 50
	}
	return &AdzunaAdapter{
		baseURL:    opts.BaseURL,
		country:    opts.Country,
		appID:      appID,
		appKey:     appKey,
		sourceName: opts.SourceName,
		perPage:    perPage,
		sortBy:     opts.SortBy,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Fetch retrieves the first page of postings for the query and normalizes
// them into RawPosting records. The fetch timestamp is taken once per call so
// every posting in the page shares it.
func (a *AdzunaAdapter) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	searchURL := fmt.Sprintf("%s/%s/search/1", a.baseURL, a.country)

	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("what", q.Keyword)
	params.Set("where", q.Location)
	params.Set("results_per_page", strconv.Itoa(a.perPage))
	params.Set("sort_by", a.sortBy)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("adzuna fetch %q/%q: %w", q.Keyword, q.Location, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Network-level failure: transient unless the context was cancelled.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("adzuna fetch %q/%q: %w", q.Keyword, q.Location, ctx.Err())
		}
		return nil, &model.TransientError{Err: fmt.Errorf("adzuna fetch %q/%q: %w", q.Keyword, q.Location, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.TransientError{Err: fmt.Errorf("adzuna fetch %q/%q: reading body: %w", q.Keyword, q.Location, err)}
	}

	var payload adzunaResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("adzuna fetch %q/%q: decoding response: %w", q.Keyword, q.Location, err)
	}

	fetchedAt := a.now().UTC()
	postings := make([]model.RawPosting, 0, len(payload.Results))
	for _, raw := range payload.Results {
		var job adzunaResult
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("adzuna fetch %q/%q: decoding job: %w", q.Keyword, q.Location, err)
		}

		var postedAt *time.Time
		if job.Created != "" {
			if t, err := time.Parse(time.RFC3339, job.Created); err == nil {
				postedAt = &t
			}
		}

		postings = append(postings, model.RawPosting{
			Source:      a.sourceName,
			JobID:       string(job.ID),
			FetchedAt:   fetchedAt,
			PostedAt:    postedAt,
			Title:       job.Title,
			Company:     job.Company.DisplayName,
			Location:    job.Location.DisplayName,
			Description: job.Description,
			URL:         job.RedirectURL,
			SalaryMin:   job.SalaryMin,
			SalaryMax:   job.SalaryMax,
			RawPayload:  append([]byte(nil), raw...),
			QueryState:  q.Location,
		})
	}

	return postings, nil
}
