// Package features derives structured features from clean postings. Every
// rule is a deterministic pattern match: the same text always yields the same
// features.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

const topSkillsLimit = 10

var (
	punctRegex    = regexp.MustCompile(`[/,_\-|]`)
	nonWordRegex  = regexp.MustCompile(`[^\w\s+]`) // keep + for "5+ years"
	mlRegex       = regexp.MustCompile(`\bml\b`)
	biRegex       = regexp.MustCompile(`\bbi\b`)
	yearsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2})\s*\+\s*(?:years|yrs)\b`),
		regexp.MustCompile(`minimum\s+(\d{1,2})\s*(?:years|yrs)\b`),
		regexp.MustCompile(`at\s+least\s+(\d{1,2})\s*(?:years|yrs)\b`),
		regexp.MustCompile(`(\d{1,2})\s*(?:years|yrs)\s+of\s+experience`),
	}
	remoteSignals = []string{
		"remote", "work from home", "wfh", "telecommute",
		"fully remote", "100% remote", "anywhere",
	}
)

// normalizeText lowercases and strips punctuation so alias patterns match
// "Power-BI", "power/bi" and "Power BI" alike.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = punctRegex.ReplaceAllString(s, " ")
	s = nonWordRegex.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ClassifyRoleFamily maps a title to a coarse role family. First matching
// rule wins; no match yields "Other".
func ClassifyRoleFamily(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "data engineer") || strings.Contains(t, "etl") || strings.Contains(t, "pipeline"):
		return "Data Engineering"
	case strings.Contains(t, "data scientist") || strings.Contains(t, "machine learning") || mlRegex.MatchString(t):
		return "Data Science"
	case strings.Contains(t, "business intelligence") || strings.Contains(t, "power bi") ||
		strings.Contains(t, "tableau") || biRegex.MatchString(t):
		return "Business Intelligence"
	case strings.Contains(t, "analyst") || strings.Contains(t, "analytics"):
		return "Analytics"
	default:
		return "Other"
	}
}

// InferSeniority maps a title to a seniority band. First matching rule wins;
// no match yields "Mid".
func InferSeniority(title string) string {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "intern", "co-op", "student"):
		return "Intern"
	case containsAny(t, "director", "head", "vp", "vice president", "manager"):
		return "Management"
	case containsAny(t, "principal", "staff", "lead", "senior", "sr.", "sr "):
		return "Senior"
	case containsAny(t, "junior", "jr.", "entry", "associate", "new grad"):
		return "Entry"
	default:
		return "Mid"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// InferRemote reports whether the text carries a remote-work indicator.
func InferRemote(blob string) bool {
	t := strings.ToLower(blob)
	return containsAny(t, remoteSignals...)
}

// ExtractYearsExperience returns the lowest years-of-experience requirement
// mentioned in the text, or nil when none is.
func ExtractYearsExperience(blob string) *int {
	t := normalizeText(blob)
	var best *int
	for _, rx := range yearsPatterns {
		for _, m := range rx.FindAllStringSubmatch(t, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if best == nil || n < *best {
				v := n
				best = &v
			}
		}
	}
	return best
}

// Extractor derives features from clean postings using a fixed vocabulary.
type Extractor struct {
	vocab  *Vocabulary
	wh     *warehouse.Warehouse
	logger *slog.Logger
	now    func() time.Time // injectable for tests
}

// New wires an Extractor to the warehouse with the given vocabulary.
func New(vocab *Vocabulary, wh *warehouse.Warehouse, logger *slog.Logger) *Extractor {
	return &Extractor{vocab: vocab, wh: wh, logger: logger, now: time.Now}
}

// Extract derives the features row for one clean posting. extractedAt is an
// explicit input so a batch stamps every row identically.
func (e *Extractor) Extract(clean model.CleanPosting, extractedAt time.Time) model.PostingFeatures {
	blob := clean.Title + "\n" + clean.LocationRaw + "\n" + clean.Description

	skills := e.vocab.Match(normalizeText(blob))
	top := skills
	if len(top) > topSkillsLimit {
		top = top[:topSkillsLimit]
	}

	return model.PostingFeatures{
		JobID:              clean.JobID,
		ExtractedAt:        extractedAt,
		State:              clean.State,
		City:               clean.City,
		RoleFamily:         ClassifyRoleFamily(clean.Title),
		Seniority:          InferSeniority(clean.Title),
		IsRemote:           InferRemote(blob),
		YearsExperienceMin: ExtractYearsExperience(blob),
		Skills:             skills,
		SkillsCount:        len(skills),
		TopSkills:          top,
	}
}

// ExtractBatch derives features for every clean posting lacking them or
// changed since the last extraction (all postings with force). Returns the
// upserted count, the touched job ids, and the metric keys those jobs
// belonged to before the upsert — a posting whose state or role family moved
// leaves its old aggregate behind otherwise, so the metrics stage must
// recompute the old keys too.
func (e *Extractor) ExtractBatch(ctx context.Context, force bool) (int, []string, []model.MetricKey, error) {
	cleans, err := e.wh.ListCleanNeedingExtract(ctx, force)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("extract batch: %w", err)
	}
	if len(cleans) == 0 {
		e.logger.Info("extract batch: nothing to do")
		return 0, nil, nil, nil
	}

	extractedAt := e.now().UTC()
	out := make([]model.PostingFeatures, 0, len(cleans))
	jobIDs := make([]string, 0, len(cleans))
	for _, c := range cleans {
		out = append(out, e.Extract(c, extractedAt))
		jobIDs = append(jobIDs, c.JobID)
	}

	priorKeys, err := e.wh.MetricKeysForJobs(ctx, jobIDs)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("extract batch: %w", err)
	}

	n, err := e.wh.UpsertFeatures(ctx, out)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("extract batch: %w", err)
	}

	e.logger.Info("extract batch complete", "postings", len(cleans), "upserted", n, "forced", force)
	return n, jobIDs, priorKeys, nil
}
