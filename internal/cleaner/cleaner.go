// Package cleaner normalizes raw postings into the clean warehouse table.
// Clean is a pure function: the same raw posting always yields the same
// clean posting.
package cleaner

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
}

var stateNames = func() map[string]bool {
	m := make(map[string]bool, len(usStates))
	for _, name := range usStates {
		m[name] = true
	}
	return m
}()

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ParseCityState extracts city and state from location strings like
// "Dallas, Texas", "New York, NY" or "Austin TX". Unparseable input yields
// nils, never an error.
func ParseCityState(locationRaw string) (city, state *string) {
	loc := strings.TrimSpace(locationRaw)
	if loc == "" {
		return nil, nil
	}

	var parts []string
	for _, p := range strings.Split(loc, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) >= 2 {
		city = ptr(parts[0])
		state = canonicalState(parts[1])
		if state == nil {
			// "Austin, TX 78701" — try the first token after the comma.
			if tokens := strings.Fields(parts[1]); len(tokens) > 0 {
				state = canonicalState(tokens[0])
			}
		}
		return city, state
	}

	// Single part: try a trailing abbreviation like "Austin TX".
	tokens := strings.Fields(loc)
	if len(tokens) > 1 {
		if name, ok := usStates[tokens[len(tokens)-1]]; ok {
			return ptr(strings.Join(tokens[:len(tokens)-1], " ")), &name
		}
	}
	if len(tokens) == 1 {
		if name, ok := usStates[tokens[0]]; ok {
			return nil, &name
		}
		if stateNames[loc] {
			return nil, &loc
		}
	}

	// A bare city like "Austin": keep it, state comes from the query fallback.
	return &loc, nil
}

func canonicalState(token string) *string {
	if name, ok := usStates[token]; ok {
		return &name
	}
	if stateNames[token] {
		return &token
	}
	return nil
}

// CleanDescription converts HTML or HTML-encoded text to plain text: entities
// unescaped, tags stripped, control characters removed, whitespace collapsed.
// An empty result is valid.
func CleanDescription(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	plain = controlCharRegex.ReplaceAllString(plain, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// sanitizeSalary treats negative values as absent.
func sanitizeSalary(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

// SalaryMid returns the midpoint when both bounds are present, the present
// bound when only one is, and nil when neither is.
func SalaryMid(min, max *float64) *float64 {
	switch {
	case min != nil && max != nil:
		mid := (*min + *max) / 2
		return &mid
	case min != nil:
		return min
	case max != nil:
		return max
	default:
		return nil
	}
}

// Clean derives the normalized posting from exactly one raw posting.
func Clean(raw model.RawPosting) model.CleanPosting {
	city, state := ParseCityState(raw.Location)

	// The state the query targeted is the most reliable fallback when the
	// location string itself does not parse.
	if state == nil && raw.QueryState != "" {
		state = ptr(raw.QueryState)
	}

	salaryMin := sanitizeSalary(raw.SalaryMin)
	salaryMax := sanitizeSalary(raw.SalaryMax)

	return model.CleanPosting{
		JobID:       raw.JobID,
		Source:      raw.Source,
		FetchedAt:   raw.FetchedAt,
		PostedAt:    raw.PostedAt,
		Title:       raw.Title,
		Company:     raw.Company,
		LocationRaw: raw.Location,
		City:        city,
		State:       state,
		URL:         raw.URL,
		SalaryMin:   salaryMin,
		SalaryMax:   salaryMax,
		SalaryMid:   SalaryMid(salaryMin, salaryMax),
		Description: CleanDescription(raw.Description),
	}
}

func ptr(s string) *string {
	return &s
}

// Cleaner runs the batch transformation against the warehouse.
type Cleaner struct {
	wh     *warehouse.Warehouse
	logger *slog.Logger
}

// New wires a Cleaner to the warehouse.
func New(wh *warehouse.Warehouse, logger *slog.Logger) *Cleaner {
	return &Cleaner{wh: wh, logger: logger}
}

// CleanBatch normalizes every raw posting fetched after since that is new or
// changed since its last clean, and upserts the results. Returns the number
// of rows upserted.
func (c *Cleaner) CleanBatch(ctx context.Context, since time.Time) (int, error) {
	raws, err := c.wh.ListRawNeedingClean(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("clean batch: %w", err)
	}
	if len(raws) == 0 {
		c.logger.Info("clean batch: nothing to do")
		return 0, nil
	}

	cleaned := make([]model.CleanPosting, 0, len(raws))
	for _, raw := range raws {
		cleaned = append(cleaned, Clean(raw))
	}

	n, err := c.wh.UpsertClean(ctx, cleaned)
	if err != nil {
		return 0, fmt.Errorf("clean batch: %w", err)
	}

	c.logger.Info("clean batch complete", "raw", len(raws), "upserted", n)
	return n, nil
}
