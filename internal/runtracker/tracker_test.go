package runtracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

func testTracker(t *testing.T, staleness time.Duration) (*Tracker, *warehouse.Warehouse) {
	t.Helper()
	wh, err := warehouse.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(wh, staleness, logger), wh
}

func TestStartFinish(t *testing.T) {
	tr, wh := testTracker(t, time.Hour)
	ctx := context.Background()

	id, err := tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)
	require.NoError(t, tr.Finish(ctx, id, model.RunStatusSuccess, 10, nil))

	last, err := wh.LastRun(ctx, "job_market_daily")
	require.NoError(t, err)
	require.Equal(t, model.RunStatusSuccess, last.Status)
	require.Equal(t, 10, last.RowsProcessed)
	require.Nil(t, last.Error)
}

func TestFinish_RecordsError(t *testing.T) {
	tr, wh := testTracker(t, time.Hour)
	ctx := context.Background()

	id, err := tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)
	require.NoError(t, tr.Finish(ctx, id, model.RunStatusFailed, 0, errors.New("ingest: boom")))

	last, err := wh.LastRun(ctx, "job_market_daily")
	require.NoError(t, err)
	require.Equal(t, model.RunStatusFailed, last.Status)
	require.NotNil(t, last.Error)
	require.Contains(t, *last.Error, "boom")
}

func TestStart_ConcurrentRunFailsFast(t *testing.T) {
	tr, _ := testTracker(t, time.Hour)
	ctx := context.Background()

	_, err := tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)

	_, err = tr.Start(ctx, "job_market_daily")
	var concErr *model.ConcurrentRunError
	require.ErrorAs(t, err, &concErr)
	require.Equal(t, "job_market_daily", concErr.PipelineName)
}

func TestStart_OtherPipelineUnaffected(t *testing.T) {
	tr, _ := testTracker(t, time.Hour)
	ctx := context.Background()

	_, err := tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)

	// A different pipeline name may run concurrently.
	_, err = tr.Start(ctx, "backfill")
	require.NoError(t, err)
}

func TestStart_AllStaleRunsMarkedFailed(t *testing.T) {
	tr, wh := testTracker(t, time.Hour)
	ctx := context.Background()

	// Two invocations crashed mid-run on different days, both still running.
	old := time.Now().UTC().Add(-48 * time.Hour)
	first, err := wh.InsertRun(ctx, "job_market_daily", old)
	require.NoError(t, err)
	second, err := wh.InsertRun(ctx, "job_market_daily", old.Add(24*time.Hour))
	require.NoError(t, err)

	_, err = tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)

	// Both crashed records get swept, not just the newest one.
	running, err := wh.RunningRuns(ctx, "job_market_daily")
	require.NoError(t, err)
	require.Len(t, running, 1) // only the fresh run remains

	for _, id := range []int64{first, second} {
		var rec *model.RunRecord
		runs, err := wh.ListRuns(ctx, 10)
		require.NoError(t, err)
		for i := range runs {
			if runs[i].RunID == id {
				rec = &runs[i]
			}
		}
		require.NotNil(t, rec)
		require.Equal(t, model.RunStatusFailed, rec.Status)
		require.NotNil(t, rec.Error)
		require.Contains(t, *rec.Error, "stale")
	}
}

func TestStart_StaleRunMarkedFailedAndProceeds(t *testing.T) {
	tr, wh := testTracker(t, time.Hour)
	ctx := context.Background()

	staleID, err := tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)

	// Jump the clock past the staleness threshold.
	tr.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	newID, err := tr.Start(ctx, "job_market_daily")
	require.NoError(t, err)
	require.Greater(t, newID, staleID)

	// The crashed run is now failed with a marker message.
	runs, err := wh.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	var stale *model.RunRecord
	for i := range runs {
		if runs[i].RunID == staleID {
			stale = &runs[i]
		}
	}
	require.NotNil(t, stale)
	require.Equal(t, model.RunStatusFailed, stale.Status)
	require.NotNil(t, stale.Error)
	require.Contains(t, *stale.Error, "stale")
}
