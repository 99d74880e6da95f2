package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const taskColumns = "id, kind, status, payload_json, attempts, attempts_allowed, progress_percent, progress_message, error_message, run_after, last_heartbeat, started_at, completed_at, created_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              int64
		kind            string
		status          string
		payloadRaw      string
		attempts        int
		attemptsAllowed int
		progressPercent float64
		progressMessage sql.NullString
		errorMessage    sql.NullString
		runAfterRaw     sql.NullString
		heartbeatRaw    sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&status,
		&payloadRaw,
		&attempts,
		&attemptsAllowed,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&runAfterRaw,
		&heartbeatRaw,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		Kind:            Kind(kind),
		Status:          Status(status),
		Attempts:        attempts,
		AttemptsAllowed: attemptsAllowed,
		ProgressPercent: progressPercent,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
		RunAfter:        parseNullableTime(runAfterRaw),
		LastHeartbeat:   parseNullableTime(heartbeatRaw),
		StartedAt:       parseNullableTime(startedRaw),
		CompletedAt:     parseNullableTime(completedRaw),
	}
	if err := json.Unmarshal([]byte(payloadRaw), &task.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of task %d: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
