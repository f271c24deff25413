// Package runtracker records each pipeline invocation's lifecycle in the
// pipeline_runs table and guards against concurrent and crashed runs.
package runtracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

// Tracker manages run records for one warehouse.
type Tracker struct {
	wh        *warehouse.Warehouse
	staleness time.Duration
	logger    *slog.Logger
	now       func() time.Time // injectable for tests
}

// New creates a Tracker. staleness is how long a run may stay in running
// state before a later invocation treats it as crashed.
func New(wh *warehouse.Warehouse, staleness time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{wh: wh, staleness: staleness, logger: logger, now: time.Now}
}

// Start begins a new run for pipelineName and returns its run id.
//
// Every prior running record older than the staleness threshold is first
// marked failed (those processes crashed without finishing); a fresh one
// means a live concurrent run, so Start fails fast with ConcurrentRunError.
func (t *Tracker) Start(ctx context.Context, pipelineName string) (int64, error) {
	now := t.now().UTC()

	running, err := t.wh.RunningRuns(ctx, pipelineName)
	if err != nil {
		return 0, fmt.Errorf("run tracker: %w", err)
	}
	for _, r := range running {
		if now.Sub(r.StartedAt) < t.staleness {
			return 0, &model.ConcurrentRunError{
				PipelineName: pipelineName,
				RunID:        r.RunID,
				StartedAt:    r.StartedAt,
			}
		}
	}
	for _, r := range running {
		msg := fmt.Sprintf("marked stale by run started at %s", now.Format(time.RFC3339))
		if err := t.wh.FinishRun(ctx, r.RunID, model.RunStatusFailed, r.RowsProcessed, &msg, now); err != nil {
			return 0, fmt.Errorf("run tracker: marking stale run %d: %w", r.RunID, err)
		}
		t.logger.Warn("marked stale run as failed",
			"pipeline", pipelineName,
			"run_id", r.RunID,
			"started_at", r.StartedAt,
		)
	}

	runID, err := t.wh.InsertRun(ctx, pipelineName, now)
	if err != nil {
		return 0, fmt.Errorf("run tracker: %w", err)
	}

	t.logger.Info("run started", "pipeline", pipelineName, "run_id", runID)
	return runID, nil
}

// Finish closes the run with its final status. For failures, runErr is
// recorded in the run row's error column.
func (t *Tracker) Finish(ctx context.Context, runID int64, status string, rowsProcessed int, runErr error) error {
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}

	if err := t.wh.FinishRun(ctx, runID, status, rowsProcessed, errMsg, t.now().UTC()); err != nil {
		return fmt.Errorf("run tracker: %w", err)
	}

	t.logger.Info("run finished",
		"run_id", runID,
		"status", status,
		"rows_processed", rowsProcessed,
	)
	return nil
}
