package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobpulse/internal/model"
)

// InsertRun creates a new pipeline_runs row in running state and returns its
// serial run_id.
func (w *Warehouse) InsertRun(ctx context.Context, pipelineName string, startedAt time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (pipeline_name, started_at, status, rows_processed)
		VALUES (?, ?, ?, 0)`,
		pipelineName, fmtTime(startedAt), model.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inserting run: last id: %w", err)
	}
	return id, nil
}

// FinishRun closes a run exactly once: sets ended_at, final status, row count
// and (for failures) the error message.
func (w *Warehouse) FinishRun(ctx context.Context, runID int64, status string, rowsProcessed int, errMsg *string, endedAt time.Time) error {
	_, err := w.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET ended_at = ?, status = ?, rows_processed = ?, error = ?
		WHERE run_id = ?`,
		fmtTime(endedAt), status, rowsProcessed, nullString(errMsg), runID)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", runID, err)
	}
	return nil
}

// RunningRuns returns every record for the pipeline still in running state,
// newest first. More than one means earlier invocations crashed mid-run.
func (w *Warehouse) RunningRuns(ctx context.Context, pipelineName string) ([]model.RunRecord, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT run_id, pipeline_name, started_at, ended_at, status, rows_processed, error
		FROM pipeline_runs
		WHERE pipeline_name = ? AND status = ?
		ORDER BY run_id DESC`, pipelineName, model.RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("finding running runs for %q: %w", pipelineName, err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning running run for %q: %w", pipelineName, err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// LastRun returns the most recent run for the pipeline regardless of status,
// or nil when the pipeline has never run.
func (w *Warehouse) LastRun(ctx context.Context, pipelineName string) (*model.RunRecord, error) {
	row := w.db.QueryRowContext(ctx, `
		SELECT run_id, pipeline_name, started_at, ended_at, status, rows_processed, error
		FROM pipeline_runs
		WHERE pipeline_name = ?
		ORDER BY run_id DESC
		LIMIT 1`, pipelineName)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding last run for %q: %w", pipelineName, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs across all pipelines, newest first.
func (w *Warehouse) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT run_id, pipeline_name, started_at, ended_at, status, rows_processed, error
		FROM pipeline_runs
		ORDER BY run_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRun(r rowScanner) (*model.RunRecord, error) {
	var (
		rec       model.RunRecord
		startedAt string
		endedAt   sql.NullString
		errMsg    sql.NullString
	)
	err := r.Scan(&rec.RunID, &rec.PipelineName, &startedAt, &endedAt,
		&rec.Status, &rec.RowsProcessed, &errMsg)
	if err != nil {
		return nil, err
	}
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at for run %d: %w", rec.RunID, err)
	}
	if rec.EndedAt, err = parseTimePtr(endedAt); err != nil {
		return nil, fmt.Errorf("parsing ended_at for run %d: %w", rec.RunID, err)
	}
	rec.Error = stringPtr(errMsg)
	return &rec, nil
}
