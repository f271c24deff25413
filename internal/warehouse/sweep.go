package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// NextSweepKeyword returns the keyword for this sweep run and advances the
// rotation cursor, so successive sweeps walk the keyword list round-robin.
func (w *Warehouse) NextSweepKeyword(ctx context.Context, keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", fmt.Errorf("no sweep keywords configured")
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sweep keyword: begin tx: %w", err)
	}
	defer tx.Rollback()

	var idx int
	err = tx.QueryRowContext(ctx,
		`SELECT next_keyword_index FROM sweep_state WHERE id = 1`).Scan(&idx)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("sweep keyword: reading cursor: %w", err)
	}

	idx = idx % len(keywords)
	next := (idx + 1) % len(keywords)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweep_state (id, next_keyword_index) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET next_keyword_index = excluded.next_keyword_index`, next)
	if err != nil {
		return "", fmt.Errorf("sweep keyword: advancing cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sweep keyword: commit: %w", err)
	}
	return keywords[idx], nil
}
