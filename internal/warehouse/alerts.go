package warehouse

import (
	"context"
	"fmt"

	"jobpulse/internal/model"
)

// InsertAlert persists one monitoring finding.
func (w *Warehouse) InsertAlert(ctx context.Context, a model.Alert) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO job_monitoring_alerts (detected_at, alert_type, severity, details)
		VALUES (?, ?, ?, ?)`,
		fmtTime(a.DetectedAt), a.Type, a.Severity, a.Details)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// CountAlertsSince returns how many alerts were recorded after the cutoff.
func (w *Warehouse) CountAlertsSince(ctx context.Context, cutoff string) (int, error) {
	var n int
	err := w.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_monitoring_alerts WHERE detected_at > ?`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting alerts: %w", err)
	}
	return n, nil
}
