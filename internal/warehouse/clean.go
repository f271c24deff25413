package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"jobpulse/internal/model"
)

const upsertCleanSQL = `INSERT INTO job_postings_clean (
	job_id, source, fetched_at, posted_at, title, company, location_raw,
	city, state, url, salary_min, salary_max, salary_mid, description_clean
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
	source            = excluded.source,
	fetched_at        = excluded.fetched_at,
	posted_at         = excluded.posted_at,
	title             = excluded.title,
	company           = excluded.company,
	location_raw      = excluded.location_raw,
	city              = excluded.city,
	state             = excluded.state,
	url               = excluded.url,
	salary_min        = excluded.salary_min,
	salary_max        = excluded.salary_max,
	salary_mid        = excluded.salary_mid,
	description_clean = excluded.description_clean`

// UpsertClean writes a batch of clean postings keyed by job_id.
func (w *Warehouse) UpsertClean(ctx context.Context, postings []model.CleanPosting) (int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert clean: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertCleanSQL)
	if err != nil {
		return 0, fmt.Errorf("upsert clean: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range postings {
		_, err := stmt.ExecContext(ctx,
			p.JobID, p.Source, fmtTime(p.FetchedAt), fmtTimePtr(p.PostedAt),
			p.Title, p.Company, p.LocationRaw,
			nullString(p.City), nullString(p.State), p.URL,
			nullFloat(p.SalaryMin), nullFloat(p.SalaryMax), nullFloat(p.SalaryMid),
			p.Description,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert clean %s: %w", p.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert clean: commit: %w", err)
	}
	return len(postings), nil
}

// GetClean returns the clean posting for job_id, or nil if absent.
func (w *Warehouse) GetClean(ctx context.Context, jobID string) (*model.CleanPosting, error) {
	row := w.db.QueryRowContext(ctx, `
		SELECT job_id, source, fetched_at, posted_at, title, company, location_raw,
		       city, state, url, salary_min, salary_max, salary_mid, description_clean
		FROM job_postings_clean WHERE job_id = ?`, jobID)
	p, err := scanClean(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListCleanNeedingExtract returns clean postings that have no features row,
// or whose clean row is newer than the last extraction. With force set, every
// clean posting is returned (operator-triggered re-extraction).
func (w *Warehouse) ListCleanNeedingExtract(ctx context.Context, force bool) ([]model.CleanPosting, error) {
	q := `
		SELECT c.job_id, c.source, c.fetched_at, c.posted_at, c.title, c.company,
		       c.location_raw, c.city, c.state, c.url, c.salary_min, c.salary_max,
		       c.salary_mid, c.description_clean
		FROM job_postings_clean c
		LEFT JOIN job_postings_features f ON f.job_id = c.job_id
		WHERE f.job_id IS NULL OR c.fetched_at > f.extracted_at
		ORDER BY c.job_id`
	if force {
		q = `
		SELECT c.job_id, c.source, c.fetched_at, c.posted_at, c.title, c.company,
		       c.location_raw, c.city, c.state, c.url, c.salary_min, c.salary_max,
		       c.salary_mid, c.description_clean
		FROM job_postings_clean c
		ORDER BY c.job_id`
	}

	rows, err := w.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing clean needing extract: %w", err)
	}
	defer rows.Close()

	var out []model.CleanPosting
	for rows.Next() {
		p, err := scanClean(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClean(r rowScanner) (*model.CleanPosting, error) {
	var (
		p                               model.CleanPosting
		fetchedAt                       string
		postedAt                        sql.NullString
		title, company, locRaw          sql.NullString
		city, state, url, desc          sql.NullString
		salaryMin, salaryMax, salaryMid sql.NullFloat64
	)
	err := r.Scan(&p.JobID, &p.Source, &fetchedAt, &postedAt, &title, &company,
		&locRaw, &city, &state, &url, &salaryMin, &salaryMax, &salaryMid, &desc)
	if err != nil {
		return nil, err
	}
	if p.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, fmt.Errorf("parsing fetched_at for %s: %w", p.JobID, err)
	}
	if p.PostedAt, err = parseTimePtr(postedAt); err != nil {
		return nil, fmt.Errorf("parsing posted_at for %s: %w", p.JobID, err)
	}
	p.Title = title.String
	p.Company = company.String
	p.LocationRaw = locRaw.String
	p.URL = url.String
	p.Description = desc.String
	p.City = stringPtr(city)
	p.State = stringPtr(state)
	p.SalaryMin = floatPtr(salaryMin)
	p.SalaryMax = floatPtr(salaryMax)
	p.SalaryMid = floatPtr(salaryMid)
	return &p, nil
}

// CleanStateStats returns the total clean row count and how many rows lack a
// parsed state. Used by the monitoring checks.
func (w *Warehouse) CleanStateStats(ctx context.Context) (total, nullState int, err error) {
	err = w.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN state IS NULL THEN 1 ELSE 0 END), 0)
		FROM job_postings_clean`).Scan(&total, &nullState)
	if err != nil {
		return 0, 0, fmt.Errorf("clean state stats: %w", err)
	}
	return total, nullState, nil
}
