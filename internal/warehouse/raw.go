package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobpulse/internal/model"
)

const upsertRawSQL = `INSERT INTO raw_job_postings (
	source, fetched_at, job_id, title, company, location,
	description, posted_at, url, salary_min, salary_max, raw_json, query_state
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (source, job_id) DO UPDATE SET
	fetched_at  = excluded.fetched_at,
	title       = excluded.title,
	company     = excluded.company,
	location    = excluded.location,
	description = excluded.description,
	posted_at   = excluded.posted_at,
	url         = excluded.url,
	salary_min  = excluded.salary_min,
	salary_max  = excluded.salary_max,
	raw_json    = excluded.raw_json,
	query_state = excluded.query_state`

// IngestRaw upserts a batch of raw postings keyed by (source, job_id);
// last write wins. Records missing source or job_id are skipped and counted,
// never aborting the batch. Returns (written, skipped).
func (w *Warehouse) IngestRaw(ctx context.Context, postings []model.RawPosting) (int, int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("ingest raw: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRawSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("ingest raw: prepare: %w", err)
	}
	defer stmt.Close()

	written, skipped := 0, 0
	for _, p := range postings {
		if p.Validate() != nil {
			skipped++
			continue
		}
		_, err := stmt.ExecContext(ctx,
			p.Source, fmtTime(p.FetchedAt), p.JobID, p.Title, p.Company, p.Location,
			p.Description, fmtTimePtr(p.PostedAt), p.URL,
			nullFloat(p.SalaryMin), nullFloat(p.SalaryMax), string(p.RawPayload), p.QueryState,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("ingest raw: upsert %s/%s: %w", p.Source, p.JobID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("ingest raw: commit: %w", err)
	}
	return written, skipped, nil
}

// ListRawNeedingClean returns raw postings fetched after since that have no
// clean row yet, or whose raw content is newer than the last clean pass.
func (w *Warehouse) ListRawNeedingClean(ctx context.Context, since time.Time) ([]model.RawPosting, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT r.source, r.job_id, r.fetched_at, r.posted_at, r.title, r.company,
		       r.location, r.description, r.url, r.salary_min, r.salary_max, r.query_state
		FROM raw_job_postings r
		LEFT JOIN job_postings_clean c ON c.job_id = r.job_id
		WHERE r.fetched_at > ?
		  AND (c.job_id IS NULL OR r.fetched_at > c.fetched_at)
		ORDER BY r.fetched_at`, fmtTime(since))
	if err != nil {
		return nil, fmt.Errorf("listing raw needing clean: %w", err)
	}
	defer rows.Close()

	var out []model.RawPosting
	for rows.Next() {
		var (
			p                     model.RawPosting
			fetchedAt             string
			postedAt              sql.NullString
			title, company, loc   sql.NullString
			desc, url, queryState sql.NullString
			salaryMin, salaryMax  sql.NullFloat64
		)
		if err := rows.Scan(&p.Source, &p.JobID, &fetchedAt, &postedAt, &title, &company,
			&loc, &desc, &url, &salaryMin, &salaryMax, &queryState); err != nil {
			return nil, fmt.Errorf("scanning raw posting: %w", err)
		}
		if p.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, fmt.Errorf("parsing fetched_at for %s/%s: %w", p.Source, p.JobID, err)
		}
		if p.PostedAt, err = parseTimePtr(postedAt); err != nil {
			return nil, fmt.Errorf("parsing posted_at for %s/%s: %w", p.Source, p.JobID, err)
		}
		p.Title = title.String
		p.Company = company.String
		p.Location = loc.String
		p.Description = desc.String
		p.URL = url.String
		p.QueryState = queryState.String
		p.SalaryMin = floatPtr(salaryMin)
		p.SalaryMax = floatPtr(salaryMax)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountRawFetchedOn returns how many raw rows were fetched on the given day.
func (w *Warehouse) CountRawFetchedOn(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := w.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_job_postings WHERE date(fetched_at) = date(?)`,
		fmtTime(day)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting raw rows: %w", err)
	}
	return n, nil
}
