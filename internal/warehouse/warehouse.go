package warehouse

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Warehouse wraps the SQLite database holding every pipeline table. It is
// opened once per run and passed explicitly to each component.
type Warehouse struct {
	db *sql.DB
}

// timeLayout is how timestamps are persisted. RFC3339 in UTC keeps string
// comparison and SQLite's date() both working.
const timeLayout = time.RFC3339

var schema = []string{
	`CREATE TABLE IF NOT EXISTS raw_job_postings (
		source      TEXT NOT NULL,
		job_id      TEXT NOT NULL,
		fetched_at  TEXT NOT NULL,
		posted_at   TEXT,
		title       TEXT,
		company     TEXT,
		location    TEXT,
		description TEXT,
		url         TEXT,
		salary_min  REAL,
		salary_max  REAL,
		raw_json    TEXT,
		query_state TEXT,
		PRIMARY KEY (source, job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS job_postings_clean (
		job_id            TEXT PRIMARY KEY,
		source            TEXT NOT NULL,
		fetched_at        TEXT NOT NULL,
		posted_at         TEXT,
		title             TEXT,
		company           TEXT,
		location_raw      TEXT,
		city              TEXT,
		state             TEXT,
		url               TEXT,
		salary_min        REAL,
		salary_max        REAL,
		salary_mid        REAL,
		description_clean TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clean_state ON job_postings_clean (state)`,
	`CREATE INDEX IF NOT EXISTS idx_clean_posted_at ON job_postings_clean (posted_at)`,
	`CREATE TABLE IF NOT EXISTS job_postings_features (
		job_id               TEXT PRIMARY KEY,
		extracted_at         TEXT NOT NULL,
		state                TEXT,
		city                 TEXT,
		role_family          TEXT NOT NULL,
		seniority            TEXT NOT NULL,
		is_remote            INTEGER NOT NULL,
		years_experience_min INTEGER,
		skills               TEXT NOT NULL,
		skills_count         INTEGER NOT NULL,
		top_skills           TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS job_daily_metrics (
		dt            TEXT NOT NULL,
		state         TEXT NOT NULL,
		role_family   TEXT NOT NULL,
		jobs_posted   INTEGER NOT NULL,
		avg_salary    REAL,
		median_salary REAL,
		PRIMARY KEY (dt, state, role_family)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id         INTEGER PRIMARY KEY AUTOINCREMENT,
		pipeline_name  TEXT NOT NULL,
		started_at     TEXT NOT NULL,
		ended_at       TEXT,
		status         TEXT NOT NULL,
		rows_processed INTEGER NOT NULL DEFAULT 0,
		error          TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS job_monitoring_alerts (
		alert_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		detected_at TEXT NOT NULL,
		alert_type  TEXT NOT NULL,
		severity    TEXT NOT NULL,
		details     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sweep_state (
		id                 INTEGER PRIMARY KEY CHECK (id = 1),
		next_keyword_index INTEGER NOT NULL
	)`,
}

// Open opens (or creates) a SQLite database at dbPath and ensures every
// warehouse table exists.
func Open(dbPath string) (*Warehouse, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating warehouse schema: %w", err)
		}
	}

	return &Warehouse{db: db}, nil
}

// Close closes the underlying database connection.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

// fmtTime converts a timestamp to its persisted form.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// fmtTimePtr converts an optional timestamp; nil stays NULL.
func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// nullable converts optional values to driver arguments.
func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
