package queue

import "errors"

var (
	// ErrTaskNotFound is returned when an id does not match any task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskActive is returned when an operation requires the task to be idle.
	ErrTaskActive = errors.New("task is active")
)
