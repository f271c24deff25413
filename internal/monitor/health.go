// Package monitor runs post-pipeline health checks against the warehouse and
// records findings as alerts for the BI layer.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobpulse/internal/config"
	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

// Checker evaluates the warehouse for freshness, volume and data-quality
// problems. Every finding is both logged and persisted.
type Checker struct {
	wh     *warehouse.Warehouse
	cfg    config.HealthConfig
	logger *slog.Logger
	now    func() time.Time // injectable for tests
}

// New creates a Checker with the given thresholds.
func New(wh *warehouse.Warehouse, cfg config.HealthConfig, logger *slog.Logger) *Checker {
	return &Checker{wh: wh, cfg: cfg, logger: logger, now: time.Now}
}

// Check runs all health checks for the named pipeline and returns the alerts
// raised. An empty slice means a healthy warehouse.
func (c *Checker) Check(ctx context.Context, pipelineName string) ([]model.Alert, error) {
	now := c.now().UTC()
	var alerts []model.Alert

	fresh, err := c.checkFreshness(ctx, pipelineName, now)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, fresh...)

	volume, err := c.checkVolume(ctx, now)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, volume...)

	nullState, err := c.checkNullState(ctx, now)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, nullState...)

	for _, a := range alerts {
		if err := c.wh.InsertAlert(ctx, a); err != nil {
			return nil, fmt.Errorf("health check: %w", err)
		}
		c.logger.Warn("health alert",
			"type", a.Type,
			"severity", a.Severity,
			"details", a.Details,
		)
	}

	if len(alerts) == 0 {
		c.logger.Info("health checks passed", "pipeline", pipelineName)
	}
	return alerts, nil
}

// checkFreshness alerts when the pipeline has never succeeded recently: no run
// at all, last run failed, or last success older than MaxRunAge.
func (c *Checker) checkFreshness(ctx context.Context, pipelineName string, now time.Time) ([]model.Alert, error) {
	last, err := c.wh.LastRun(ctx, pipelineName)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	if last == nil {
		return []model.Alert{{
			DetectedAt: now,
			Type:       "freshness",
			Severity:   "HIGH",
			Details:    fmt.Sprintf("pipeline %q has never run", pipelineName),
		}}, nil
	}

	if last.Status == model.RunStatusFailed {
		details := fmt.Sprintf("last run %d failed", last.RunID)
		if last.Error != nil {
			details = fmt.Sprintf("last run %d failed: %s", last.RunID, *last.Error)
		}
		return []model.Alert{{
			DetectedAt: now,
			Type:       "freshness",
			Severity:   "HIGH",
			Details:    details,
		}}, nil
	}

	age := now.Sub(last.StartedAt)
	if age > c.cfg.MaxRunAge {
		return []model.Alert{{
			DetectedAt: now,
			Type:       "freshness",
			Severity:   "HIGH",
			Details: fmt.Sprintf("last run started %s ago, threshold %s",
				age.Round(time.Minute), c.cfg.MaxRunAge),
		}}, nil
	}
	return nil, nil
}

// checkVolume alerts when today's raw intake dropped below the configured
// share of yesterday's. Quiet days with no prior data never alert.
func (c *Checker) checkVolume(ctx context.Context, now time.Time) ([]model.Alert, error) {
	today, err := c.wh.CountRawFetchedOn(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	yesterday, err := c.wh.CountRawFetchedOn(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	if yesterday == 0 {
		return nil, nil
	}
	if float64(today) < c.cfg.VolumeDropRatio*float64(yesterday) {
		return []model.Alert{{
			DetectedAt: now,
			Type:       "volume",
			Severity:   "MEDIUM",
			Details: fmt.Sprintf("fetched %d postings today vs %d yesterday (threshold ratio %.2f)",
				today, yesterday, c.cfg.VolumeDropRatio),
		}}, nil
	}
	return nil, nil
}

// checkNullState alerts when too many clean rows failed state parsing.
func (c *Checker) checkNullState(ctx context.Context, now time.Time) ([]model.Alert, error) {
	total, nullState, err := c.wh.CleanStateStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	ratio := float64(nullState) / float64(total)
	if ratio > c.cfg.NullStateRatio {
		return []model.Alert{{
			DetectedAt: now,
			Type:       "null_state",
			Severity:   "MEDIUM",
			Details: fmt.Sprintf("%d of %d clean postings (%.0f%%) have no parsed state",
				nullState, total, ratio*100),
		}}, nil
	}
	return nil, nil
}
