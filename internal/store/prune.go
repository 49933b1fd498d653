package store

import (
	"context"
	"fmt"
	"time"
)

// PruneExecutions deletes execution records older than the retention
// window. Detached records (deleted parents) age out like any other.
// Returns the number of rows removed.
func (s *Store) PruneExecutions(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM executions WHERE executed_date < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune executions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return n, nil
}
