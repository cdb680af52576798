package db

import (
	"context"
	"fmt"
	"time"
)

// PruneResult contains statistics about a prune operation.
type PruneResult struct {
	// JobsDeleted is the number of rows deleted from jobs
	JobsDeleted int64
	// EventsDeleted is the number of rows deleted from job_events
	EventsDeleted int64
	// Duration is how long the prune took
	Duration time.Duration
}

// Prune deletes jobs submitted more than olderThan ago, with their events,
// and runs VACUUM to reclaim disk space.
//
// Deletion runs in one transaction; if any statement fails nothing is removed.
//
// Example:
//
//	result, err := database.Prune(ctx, 30*24*time.Hour)
func (d *Database) Prune(ctx context.Context, olderThan time.Duration) (PruneResult, error) {
	start := time.Now()
	result := PruneResult{}

	if olderThan < 0 {
		return result, fmt.Errorf("olderThan must be non-negative, got %v", olderThan)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return result, fmt.Errorf("database connection is closed")
	}

	cutoff := formatTime(time.Now().Add(-olderThan))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	// Events first so the count is exact; the cascade would remove them silently.
	res, err := tx.ExecContext(ctx,
		`DELETE FROM job_events WHERE job_id IN (SELECT job_id FROM jobs WHERE submitted_at < ?)`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete from job_events: %w", err)
	}
	if result.EventsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for job_events: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE submitted_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete from jobs: %w", err)
	}
	if result.JobsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for jobs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	if err := ctx.Err(); err != nil {
		// Rows are gone; only VACUUM was skipped.
		result.Duration = time.Since(start)
		return result, err
	}

	// VACUUM must run outside a transaction.
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("prune succeeded but VACUUM failed: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}
