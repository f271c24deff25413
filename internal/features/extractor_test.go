package features

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

const testVocabYAML = `
skills:
  sql: ["sql", "postgresql"]
  python: ["python"]
  power bi: ["power bi", "powerbi"]
  tableau: ["tableau"]
  etl: ["etl"]
`

func testVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := ParseVocabulary([]byte(testVocabYAML))
	if err != nil {
		t.Fatalf("ParseVocabulary: %v", err)
	}
	return v
}

func TestParseVocabulary_PreservesOrder(t *testing.T) {
	v := testVocab(t)
	if v.Len() != 5 {
		t.Fatalf("Len = %d, want 5", v.Len())
	}

	found := v.Match(normalizeText("We use Tableau, SQL and Python daily"))
	want := []string{"sql", "python", "tableau"}
	if !reflect.DeepEqual(found, want) {
		t.Errorf("Match = %v, want vocabulary order %v", found, want)
	}
}

func TestVocabMatch_AliasAndWordBoundary(t *testing.T) {
	v := testVocab(t)

	if got := v.Match(normalizeText("experience with PowerBI required")); !reflect.DeepEqual(got, []string{"power bi"}) {
		t.Errorf("alias match = %v", got)
	}
	// "sqlite" must not match "sql".
	if got := v.Match(normalizeText("we use sqlite")); got != nil {
		t.Errorf("sqlite matched %v, want none", got)
	}
}

func TestClassifyRoleFamily(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Senior Data Engineer", "Data Engineering"},
		{"ETL Developer", "Data Engineering"},
		{"Data Scientist II", "Data Science"},
		{"ML Engineer", "Data Science"},
		{"Business Intelligence Developer", "Business Intelligence"},
		{"Tableau Specialist", "Business Intelligence"},
		{"Data Analyst", "Analytics"},
		{"Analytics Consultant", "Analytics"},
		{"Office Manager", "Other"},
		{"", "Other"},
	}
	for _, tt := range tests {
		if got := ClassifyRoleFamily(tt.title); got != tt.want {
			t.Errorf("ClassifyRoleFamily(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestClassifyRoleFamily_FirstRuleWins(t *testing.T) {
	// Mentions both engineering and analytics terms: the earlier rule wins.
	if got := ClassifyRoleFamily("Data Engineer / Analyst"); got != "Data Engineering" {
		t.Errorf("got %q, want Data Engineering", got)
	}
}

func TestInferSeniority(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Data Science Intern", "Intern"},
		{"Director of Analytics", "Management"},
		{"Senior Data Analyst", "Senior"},
		{"Sr. BI Developer", "Senior"},
		{"Junior Analyst", "Entry"},
		{"New Grad Data Engineer", "Entry"},
		{"Data Analyst", "Mid"},
	}
	for _, tt := range tests {
		if got := InferSeniority(tt.title); got != tt.want {
			t.Errorf("InferSeniority(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestInferRemote(t *testing.T) {
	if !InferRemote("This role is fully remote") {
		t.Error("expected remote for explicit signal")
	}
	if !InferRemote("Work From Home friendly") {
		t.Error("expected remote for WFH")
	}
	if InferRemote("Onsite in Austin, TX") {
		t.Error("expected not remote")
	}
}

func TestExtractYearsExperience(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"5+ years required", intp(5)},
		{"minimum 3 years in analytics", intp(3)},
		{"at least 7 yrs", intp(7)},
		{"2 years of experience", intp(2)},
		{"8+ years or minimum 4 years", intp(4)}, // lowest wins
		{"no requirement stated", nil},
	}
	for _, tt := range tests {
		got := ExtractYearsExperience(tt.in)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("ExtractYearsExperience(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("ExtractYearsExperience(%q) = %d, want %d", tt.in, *got, *tt.want)
		}
	}
}

func intp(v int) *int { return &v }

func TestExtract_Deterministic(t *testing.T) {
	e := &Extractor{vocab: testVocab(t)}
	state := "Texas"
	clean := model.CleanPosting{
		JobID:       "j1",
		State:       &state,
		Title:       "Senior Data Engineer",
		LocationRaw: "Remote, US",
		Description: "Build ETL with SQL and Python. 5+ years of experience.",
	}
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	first := e.Extract(clean, at)
	second := e.Extract(clean, at)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Extract is not deterministic:\n%+v\n%+v", first, second)
	}

	if first.RoleFamily != "Data Engineering" || first.Seniority != "Senior" {
		t.Errorf("features = %+v", first)
	}
	if !first.IsRemote {
		t.Error("expected IsRemote")
	}
	if first.YearsExperienceMin == nil || *first.YearsExperienceMin != 5 {
		t.Errorf("YearsExperienceMin = %v, want 5", first.YearsExperienceMin)
	}
	if !reflect.DeepEqual(first.Skills, []string{"sql", "python", "etl"}) {
		t.Errorf("Skills = %v", first.Skills)
	}
	if first.SkillsCount != 3 {
		t.Errorf("SkillsCount = %d, want 3", first.SkillsCount)
	}
}

func TestExtractBatch_ReturnsPriorMetricKeys(t *testing.T) {
	wh, err := warehouse.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { wh.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(testVocab(t), wh, logger)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return day }

	texas := "Texas"
	if _, err := wh.UpsertClean(ctx, []model.CleanPosting{{
		JobID:     "j1",
		Source:    "adzuna",
		FetchedAt: day,
		PostedAt:  &day,
		Title:     "Data Analyst",
		State:     &texas,
	}}); err != nil {
		t.Fatalf("UpsertClean: %v", err)
	}

	// First extraction: no features existed yet, so no prior keys.
	n, ids, prior, err := e.ExtractBatch(ctx, false)
	if err != nil {
		t.Fatalf("ExtractBatch: %v", err)
	}
	if n != 1 || len(ids) != 1 || ids[0] != "j1" {
		t.Fatalf("ExtractBatch = (%d, %v)", n, ids)
	}
	if len(prior) != 0 {
		t.Fatalf("prior keys = %v, want none", prior)
	}

	// The posting is re-fetched with a new state; the batch must report the
	// key it is leaving so its old aggregate can be recomputed.
	california := "California"
	if _, err := wh.UpsertClean(ctx, []model.CleanPosting{{
		JobID:     "j1",
		Source:    "adzuna",
		FetchedAt: day.Add(time.Minute),
		PostedAt:  &day,
		Title:     "Data Analyst",
		State:     &california,
	}}); err != nil {
		t.Fatalf("UpsertClean: %v", err)
	}

	_, _, prior, err = e.ExtractBatch(ctx, false)
	if err != nil {
		t.Fatalf("second ExtractBatch: %v", err)
	}
	want := []model.MetricKey{{Date: "2026-08-30", State: "Texas", RoleFamily: "Analytics"}}
	if !reflect.DeepEqual(prior, want) {
		t.Errorf("prior keys = %v, want %v", prior, want)
	}
}
