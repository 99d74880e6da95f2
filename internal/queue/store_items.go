package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue persists a new inactive task. attemptsAllowed is the total number
// of runs the task may consume; values below one are raised to one.
func (s *Store) Enqueue(ctx context.Context, kind Kind, payload Payload, attemptsAllowed int) (*Task, error) {
	if _, ok := ParseKind(string(kind)); !ok {
		return nil, fmt.Errorf("enqueue: unknown task kind %q", kind)
	}
	if err := payload.validate(kind); err != nil {
		return nil, err
	}
	if attemptsAllowed < 1 {
		attemptsAllowed = 1
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	timestamp := formatTime(time.Now())

	res, err := s.exec(
		ctx,
		`INSERT INTO tasks (
            kind, status, payload_json, source_key, attempts, attempts_allowed,
            progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, 0, ?, ?)`,
		kind,
		StatusInactive,
		encoded,
		nullableString(payload.Data),
		attemptsAllowed,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a task by id. A missing task yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks ordered by id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	} else {
		query := `SELECT ` + taskColumns + ` FROM tasks WHERE status IN (` + makePlaceholders(len(statuses)) + `) ORDER BY id`
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return scanTasks(rows)
}

// Remove deletes a task regardless of its status.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Restart moves an idle task back to inactive with a fresh attempt budget.
func (s *Store) Restart(ctx context.Context, id int64) (*Task, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Status == StatusActive {
		return nil, ErrTaskActive
	}

	res, err := s.exec(
		ctx,
		`UPDATE tasks
         SET status = ?, attempts = 0, progress_percent = 0, progress_message = NULL,
             error_message = NULL, run_after = NULL, last_heartbeat = NULL,
             started_at = NULL, completed_at = NULL, updated_at = ?
         WHERE id = ? AND status <> ?`,
		StatusInactive,
		formatTime(time.Now()),
		id,
		StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("restart task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrTaskActive
	}
	return s.GetByID(ctx, id)
}

// ReferencesSource reports whether any task other than excludeID may still
// read the staged source key.
func (s *Store) ReferencesSource(ctx context.Context, key string, excludeID int64) (bool, error) {
	if key == "" {
		return false, nil
	}
	args := []any{key, excludeID}
	args = append(args, statusArgs(holdingStatuses)...)
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM tasks
         WHERE source_key = ? AND id <> ? AND status IN (`+makePlaceholders(len(holdingStatuses))+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count source references: %w", err)
	}
	return count > 0, nil
}

// HeldSources returns every staged key that a non-terminal or restartable
// task still references.
func (s *Store) HeldSources(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT source_key FROM tasks
         WHERE source_key IS NOT NULL AND status IN (`+makePlaceholders(len(holdingStatuses))+`)`,
		statusArgs(holdingStatuses)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query held sources: %w", err)
	}
	defer rows.Close()

	held := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		held[key] = struct{}{}
	}
	return held, rows.Err()
}

// ClearCompleted removes tasks that finished successfully.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE status = ?`, StatusComplete)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}
