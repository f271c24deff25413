package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"jobpulse/internal/model"
)

// metricDateExpr derives the metric date for a posting: the posted date when
// the source provides one, otherwise the fetch date.
const metricDateExpr = `date(COALESCE(c.posted_at, c.fetched_at))`

// MetricKeysForJobs resolves the (dt, state, role_family) keys touched by the
// given jobs. Rows without a parsed state group under the empty-state bucket.
func (w *Warehouse) MetricKeysForJobs(ctx context.Context, jobIDs []string) ([]model.MetricKey, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(jobIDs)), ",")
	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		args[i] = id
	}

	rows, err := w.db.QueryContext(ctx, `
		SELECT DISTINCT `+metricDateExpr+`, COALESCE(f.state, ''), f.role_family
		FROM job_postings_features f
		JOIN job_postings_clean c ON c.job_id = f.job_id
		WHERE f.job_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("resolving metric keys: %w", err)
	}
	defer rows.Close()

	var keys []model.MetricKey
	for rows.Next() {
		var k model.MetricKey
		if err := rows.Scan(&k.Date, &k.State, &k.RoleFamily); err != nil {
			return nil, fmt.Errorf("scanning metric key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// MetricGroup is the raw input for one aggregate row: every posting under the
// key, with its salary midpoint where known.
type MetricGroup struct {
	Key        model.MetricKey
	JobsPosted int
	SalaryMids []float64 // non-null midpoints only
}

// MetricGroupFor collects the postings currently under one metric key.
func (w *Warehouse) MetricGroupFor(ctx context.Context, key model.MetricKey) (MetricGroup, error) {
	g := MetricGroup{Key: key}

	rows, err := w.db.QueryContext(ctx, `
		SELECT c.salary_mid
		FROM job_postings_features f
		JOIN job_postings_clean c ON c.job_id = f.job_id
		WHERE `+metricDateExpr+` = ? AND COALESCE(f.state, '') = ? AND f.role_family = ?`,
		key.Date, key.State, key.RoleFamily)
	if err != nil {
		return g, fmt.Errorf("collecting metric group %v: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var mid sql.NullFloat64
		if err := rows.Scan(&mid); err != nil {
			return g, fmt.Errorf("scanning salary mid: %w", err)
		}
		g.JobsPosted++
		if mid.Valid {
			g.SalaryMids = append(g.SalaryMids, mid.Float64)
		}
	}
	return g, rows.Err()
}

// ReplaceDailyMetrics deletes every row under the given keys and writes the
// recomputed aggregates in one transaction. Keys that recomputed to zero
// postings simply stay deleted.
func (w *Warehouse) ReplaceDailyMetrics(ctx context.Context, keys []model.MetricKey, metrics []model.DailyMetric) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace metrics: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM job_daily_metrics WHERE dt = ? AND state = ? AND role_family = ?`,
			k.Date, k.State, k.RoleFamily)
		if err != nil {
			return fmt.Errorf("deleting metric %v: %w", k, err)
		}
	}

	for _, m := range metrics {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_daily_metrics (dt, state, role_family, jobs_posted, avg_salary, median_salary)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.Key.Date, m.Key.State, m.Key.RoleFamily, m.JobsPosted,
			nullFloat(m.AvgSalary), nullFloat(m.MedianSalary))
		if err != nil {
			return fmt.Errorf("inserting metric %v: %w", m.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace metrics: commit: %w", err)
	}
	return nil
}

// PruneOrphanMetrics deletes aggregate rows whose key no longer has any
// posting behind it (a job's state or role family moved between runs).
func (w *Warehouse) PruneOrphanMetrics(ctx context.Context) (int, error) {
	res, err := w.db.ExecContext(ctx, `
		DELETE FROM job_daily_metrics WHERE NOT EXISTS (
			SELECT 1
			FROM job_postings_features f
			JOIN job_postings_clean c ON c.job_id = f.job_id
			WHERE `+metricDateExpr+` = job_daily_metrics.dt
			  AND COALESCE(f.state, '') = job_daily_metrics.state
			  AND f.role_family = job_daily_metrics.role_family
		)`)
	if err != nil {
		return 0, fmt.Errorf("pruning orphan metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning orphan metrics: rows affected: %w", err)
	}
	return int(n), nil
}

// ListDailyMetrics returns every aggregate row, ordered by key. Used by the
// monitoring checks and in tests.
func (w *Warehouse) ListDailyMetrics(ctx context.Context) ([]model.DailyMetric, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT dt, state, role_family, jobs_posted, avg_salary, median_salary
		FROM job_daily_metrics
		ORDER BY dt, state, role_family`)
	if err != nil {
		return nil, fmt.Errorf("listing daily metrics: %w", err)
	}
	defer rows.Close()

	var out []model.DailyMetric
	for rows.Next() {
		var (
			m        model.DailyMetric
			avg, med sql.NullFloat64
		)
		if err := rows.Scan(&m.Key.Date, &m.Key.State, &m.Key.RoleFamily,
			&m.JobsPosted, &avg, &med); err != nil {
			return nil, fmt.Errorf("scanning daily metric: %w", err)
		}
		m.AvgSalary = floatPtr(avg)
		m.MedianSalary = floatPtr(med)
		out = append(out, m)
	}
	return out, rows.Err()
}
