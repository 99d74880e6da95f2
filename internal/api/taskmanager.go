package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
	"mediaferry/internal/services"
)

// Section names accepted by the fields query parameter.
const (
	FieldTasks       = "tasks"
	FieldClients     = "clients"
	FieldUploading   = "uploading"
	FieldDownloading = "downloading"
)

// TaskStore is the queue surface the task manager drives.
type TaskStore interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error)
	GetByID(ctx context.Context, id int64) (*queue.Task, error)
	Remove(ctx context.Context, id int64) error
	Restart(ctx context.Context, id int64) (*queue.Task, error)
	ClearCompleted(ctx context.Context) (int64, error)
}

// Sockets is the registry surface the task manager drives.
type Sockets interface {
	Snapshot() []registry.Info
	Uploading() []string
	Downloading() []string
	Kick(id string) error
}

// Fields selects the sections of a TaskManagerView.
type Fields struct {
	Tasks       bool
	Clients     bool
	Uploading   bool
	Downloading bool
}

// AllFields selects every section.
func AllFields() Fields {
	return Fields{Tasks: true, Clients: true, Uploading: true, Downloading: true}
}

// ParseFields reads a comma separated section list. Empty input selects
// every section.
func ParseFields(raw string) (Fields, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AllFields(), nil
	}
	var fields Fields
	for _, part := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case FieldTasks:
			fields.Tasks = true
		case FieldClients:
			fields.Clients = true
		case FieldUploading:
			fields.Uploading = true
		case FieldDownloading:
			fields.Downloading = true
		default:
			return Fields{}, services.Wrap(services.ErrValidation, "api", "parse fields", fmt.Sprintf("unknown field %q", part), nil)
		}
	}
	return fields, nil
}

// ParseStatuses reads task status filters. Each value may itself be comma
// separated.
func ParseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, services.Wrap(services.ErrValidation, "api", "parse status", fmt.Sprintf("unknown status %q", part), nil)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

// TaskManager backs the admin task and socket endpoints.
type TaskManager struct {
	tasks   TaskStore
	sockets Sockets
	logger  *slog.Logger
}

// NewTaskManager constructs a TaskManager.
func NewTaskManager(tasks TaskStore, sockets Sockets, logger *slog.Logger) *TaskManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TaskManager{tasks: tasks, sockets: sockets, logger: logging.NewComponentLogger(logger, "task-manager")}
}

// View assembles the requested sections.
func (m *TaskManager) View(ctx context.Context, fields Fields, statuses ...queue.Status) (TaskManagerView, error) {
	var view TaskManagerView
	if fields.Tasks {
		tasks, err := m.GetTasks(ctx, statuses...)
		if err != nil {
			return TaskManagerView{}, err
		}
		view.Tasks = &tasks
	}
	if fields.Clients {
		clients := FromClients(m.sockets.Snapshot())
		view.Clients = &clients
	}
	if fields.Uploading {
		uploading := nonNil(m.sockets.Uploading())
		view.Uploading = &uploading
	}
	if fields.Downloading {
		downloading := nonNil(m.sockets.Downloading())
		view.Downloading = &downloading
	}
	return view, nil
}

// GetTasks lists tasks, optionally filtered by status.
func (m *TaskManager) GetTasks(ctx context.Context, statuses ...queue.Status) ([]Task, error) {
	tasks, err := m.tasks.List(ctx, statuses...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "api", "list tasks", "queue unavailable", err)
	}
	return FromTasks(tasks), nil
}

// CancelTask removes a task. A running task's worker notices on completion.
func (m *TaskManager) CancelTask(ctx context.Context, id int64) error {
	if err := m.tasks.Remove(ctx, id); err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return services.Wrap(services.ErrNotFound, "api", "cancel task", fmt.Sprintf("task %d not found", id), err)
		}
		return services.Wrap(services.ErrTransient, "api", "cancel task", "queue unavailable", err)
	}
	m.logger.Info("task cancelled",
		logging.TaskID(id),
		logging.String(logging.FieldEventType, "task_cancelled"),
	)
	return nil
}

// StartTask re-queues a task for processing with a fresh attempt budget.
// Active tasks are rejected.
func (m *TaskManager) StartTask(ctx context.Context, id int64) (Task, error) {
	task, err := m.tasks.Restart(ctx, id)
	switch {
	case errors.Is(err, queue.ErrTaskNotFound):
		return Task{}, services.Wrap(services.ErrNotFound, "api", "restart task", fmt.Sprintf("task %d not found", id), err)
	case errors.Is(err, queue.ErrTaskActive):
		return Task{}, services.Wrap(services.ErrConflict, "api", "restart task", fmt.Sprintf("task %d is active", id), err)
	case err != nil:
		return Task{}, services.Wrap(services.ErrTransient, "api", "restart task", "queue unavailable", err)
	}
	m.logger.Info("task restarted",
		logging.TaskID(id),
		logging.String(logging.FieldEventType, "task_restarted"),
	)
	return FromTask(task), nil
}

// ClearCompleted drops finished tasks and reports how many went.
func (m *TaskManager) ClearCompleted(ctx context.Context) (int64, error) {
	removed, err := m.tasks.ClearCompleted(ctx)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "api", "clear completed", "queue unavailable", err)
	}
	if removed > 0 {
		m.logger.Info("completed tasks cleared",
			logging.Int64("removed", removed),
			logging.String(logging.FieldEventType, "tasks_cleared"),
		)
	}
	return removed, nil
}

// KickSocket disconnects a client.
func (m *TaskManager) KickSocket(id string) error {
	if err := m.sockets.Kick(id); err != nil {
		if errors.Is(err, registry.ErrUnknownConnection) {
			return services.Wrap(services.ErrNotFound, "api", "kick socket", fmt.Sprintf("socket %s not found", id), err)
		}
		return err
	}
	m.logger.Info("socket kicked",
		logging.ConnectionID(id),
		logging.String(logging.FieldEventType, "socket_kicked"),
	)
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// GetTask loads one task.
func (m *TaskManager) GetTask(ctx context.Context, id int64) (Task, error) {
	task, err := m.tasks.GetByID(ctx, id)
	if err != nil {
		return Task{}, services.Wrap(services.ErrTransient, "api", "get task", "queue unavailable", err)
	}
	if task == nil {
		return Task{}, services.Wrap(services.ErrNotFound, "api", "get task", fmt.Sprintf("task %d not found", id), nil)
	}
	return FromTask(task), nil
}
