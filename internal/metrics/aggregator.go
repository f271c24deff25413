// Package metrics rolls posting features up into the daily aggregate table.
// Aggregates are always replaced wholesale per key, so recomputing with
// unchanged inputs is idempotent.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

// Aggregator recomputes job_daily_metrics rows.
type Aggregator struct {
	wh     *warehouse.Warehouse
	logger *slog.Logger
}

// New wires an Aggregator to the warehouse.
func New(wh *warehouse.Warehouse, logger *slog.Logger) *Aggregator {
	return &Aggregator{wh: wh, logger: logger}
}

// Recompute rebuilds the aggregate rows for every (date, state, role_family)
// key touched by the given jobs: delete, recount, reinsert. priorKeys are the
// keys the jobs belonged to before this run's feature pass; they are
// recomputed too, so an aggregate a posting moved out of shrinks instead of
// going stale. Keys left with zero postings are pruned. Returns the number of
// rows upserted.
func (a *Aggregator) Recompute(ctx context.Context, touchedJobIDs []string, priorKeys []model.MetricKey) (int, error) {
	currentKeys, err := a.wh.MetricKeysForJobs(ctx, touchedJobIDs)
	if err != nil {
		return 0, fmt.Errorf("recompute metrics: %w", err)
	}
	keys := mergeKeys(currentKeys, priorKeys)

	metrics := make([]model.DailyMetric, 0, len(keys))
	for _, key := range keys {
		group, err := a.wh.MetricGroupFor(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("recompute metrics: %w", err)
		}
		if group.JobsPosted == 0 {
			continue // deleted, not reinserted
		}
		metrics = append(metrics, model.DailyMetric{
			Key:          key,
			JobsPosted:   group.JobsPosted,
			AvgSalary:    Mean(group.SalaryMids),
			MedianSalary: Median(group.SalaryMids),
		})
	}

	if err := a.wh.ReplaceDailyMetrics(ctx, keys, metrics); err != nil {
		return 0, fmt.Errorf("recompute metrics: %w", err)
	}

	pruned, err := a.wh.PruneOrphanMetrics(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute metrics: %w", err)
	}

	a.logger.Info("metrics recomputed",
		"touched_jobs", len(touchedJobIDs),
		"keys", len(keys),
		"rows", len(metrics),
		"pruned", pruned,
	)
	return len(metrics), nil
}

// mergeKeys unions two key sets, preserving first-seen order.
func mergeKeys(a, b []model.MetricKey) []model.MetricKey {
	seen := make(map[model.MetricKey]struct{}, len(a)+len(b))
	var out []model.MetricKey
	for _, k := range append(append([]model.MetricKey(nil), a...), b...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Mean returns the arithmetic mean, or nil for an empty slice.
func Mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}

// Median returns the median, averaging the middle pair for even counts, or
// nil for an empty slice.
func Median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	var m float64
	if len(sorted)%2 == 1 {
		m = sorted[mid]
	} else {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &m
}
