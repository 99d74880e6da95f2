package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext atomically moves the oldest runnable task of kind to active and
// counts the attempt. It returns (nil, nil) when nothing is runnable.
func (s *Store) ClaimNext(ctx context.Context, kind Kind) (*Task, error) {
	ctx = orBackground(ctx)
	now := formatTime(time.Now())
	var (
		task    *Task
		scanErr error
	)
	err := s.busy.do(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE tasks
             SET status = ?, attempts = attempts + 1, started_at = ?, last_heartbeat = ?,
                 run_after = NULL, progress_percent = 0, progress_message = NULL, updated_at = ?
             WHERE id = (
                 SELECT id FROM tasks
                 WHERE kind = ? AND (status = ? OR (status = ? AND run_after <= ?))
                 ORDER BY id
                 LIMIT 1
             )
             RETURNING `+taskColumns,
			StatusActive, now, now, now,
			kind, StatusInactive, StatusDelayed, now,
		)
		task, scanErr = scanTask(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil
		}
		return scanErr
	})
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s task: %w", kind, err)
	}
	return task, nil
}

// Complete marks an active task as finished.
func (s *Store) Complete(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	res, err := s.exec(
		ctx,
		`UPDATE tasks
         SET status = ?, progress_percent = 100, error_message = NULL, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusComplete, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return requireAffected(res)
}

// Fail records a failed run. When the task still has attempts left and the
// failure is retryable it is delayed by backoff doubled per prior attempt;
// otherwise it becomes failed. The resulting status is returned.
func (s *Store) Fail(ctx context.Context, id int64, cause error, retryable bool, backoff time.Duration) (Status, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", ErrTaskNotFound
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	now := time.Now()

	if retryable && task.AttemptsLeft() > 0 {
		runAfter := now.Add(RetryDelay(backoff, task.Attempts))
		if _, err := s.exec(
			ctx,
			`UPDATE tasks
             SET status = ?, error_message = ?, run_after = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ?`,
			StatusDelayed, nullableString(message), formatTime(runAfter), formatTime(now), id,
		); err != nil {
			return "", fmt.Errorf("delay task: %w", err)
		}
		return StatusDelayed, nil
	}

	if _, err := s.exec(
		ctx,
		`UPDATE tasks
         SET status = ?, error_message = ?, run_after = NULL, last_heartbeat = NULL,
             completed_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(message), formatTime(now), formatTime(now), id,
	); err != nil {
		return "", fmt.Errorf("fail task: %w", err)
	}
	return StatusFailed, nil
}

// RetryDelay returns the exponential backoff for the given attempt count.
func RetryDelay(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		attempts = 16
	}
	return base << (attempts - 1)
}

// UpdateProgress records a progress snapshot for an active task.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if _, err := s.exec(
		ctx,
		`UPDATE tasks SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		percent, nullableString(message), formatTime(time.Now()), id, StatusActive,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an active task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	if _, err := s.exec(
		ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusActive,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns active tasks whose heartbeat is older than cutoff to
// inactive so another worker can pick them up.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(
		ctx,
		`UPDATE tasks
         SET status = ?, last_heartbeat = NULL, progress_message = 'Reclaimed after missed heartbeat', updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusInactive, formatTime(time.Now()), StatusActive, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// ResetActive returns every active task to inactive. The daemon calls this
// at startup, when no worker can still own one.
func (s *Store) ResetActive(ctx context.Context) (int64, error) {
	res, err := s.exec(
		ctx,
		`UPDATE tasks
         SET status = ?, last_heartbeat = NULL, progress_message = 'Reset after restart', updated_at = ?
         WHERE status = ?`,
		StatusInactive, formatTime(time.Now()), StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("reset active tasks: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// PromoteDelayed moves delayed tasks whose backoff has elapsed back to
// inactive. ClaimNext already considers them runnable; promotion keeps
// listings accurate for operators.
func (s *Store) PromoteDelayed(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(
		ctx,
		`UPDATE tasks SET status = ?, run_after = NULL, updated_at = ?
         WHERE status = ? AND run_after <= ?`,
		StatusInactive, formatTime(now), StatusDelayed, formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("promote delayed tasks: %w", err)
	}
	return res.RowsAffected()
}
