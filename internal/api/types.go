package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a queued task in a transport-friendly format.
type Task struct {
	ID              int64        `json:"id"`
	Kind            string       `json:"kind"`
	Status          string       `json:"status"`
	Payload         TaskPayload  `json:"payload"`
	Attempts        int          `json:"attempts"`
	AttemptsAllowed int          `json:"attemptsAllowed"`
	Progress        TaskProgress `json:"progress"`
	ErrorMessage    string       `json:"errorMessage,omitempty"`
	RunAfter        string       `json:"runAfter,omitempty"`
	StartedAt       string       `json:"startedAt,omitempty"`
	CompletedAt     string       `json:"completedAt,omitempty"`
	CreatedAt       string       `json:"createdAt,omitempty"`
	UpdatedAt       string       `json:"updatedAt,omitempty"`
}

// TaskPayload mirrors the task input.
type TaskPayload struct {
	Data         string `json:"data"`
	Dest         string `json:"dest"`
	FallbackDest string `json:"fallbackDest,omitempty"`
	EntityID     string `json:"entityId,omitempty"`
	MediaID      string `json:"mediaId,omitempty"`
	SourceID     string `json:"sourceId,omitempty"`
}

// TaskProgress captures the last progress snapshot of a task.
type TaskProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// ClientTarget is the source a client is uploading into.
type ClientTarget struct {
	MainID   string `json:"mainId"`
	MediaID  string `json:"mediaId"`
	SourceID string `json:"sourceId"`
}

// Client describes one connected websocket client.
type Client struct {
	ID            string        `json:"id"`
	RemoteAddr    string        `json:"remoteAddr,omitempty"`
	UserID        string        `json:"userId,omitempty"`
	State         string        `json:"state"`
	ConnectedAt   string        `json:"connectedAt,omitempty"`
	Downloading   []string      `json:"downloading"`
	Target        *ClientTarget `json:"target,omitempty"`
	Filename      string        `json:"filename,omitempty"`
	BufferedBytes int           `json:"bufferedBytes"`
}

// TaskManagerView is the admin snapshot of tasks and clients. Nil sections
// were not requested.
type TaskManagerView struct {
	Tasks       *[]Task   `json:"tasks,omitempty"`
	Clients     *[]Client `json:"clients,omitempty"`
	Uploading   *[]string `json:"uploading,omitempty"`
	Downloading *[]string `json:"downloading,omitempty"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task Task `json:"task"`
}

// ClearResponse reports how many finished tasks were dropped.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// LaneStatus reports one workflow lane.
type LaneStatus struct {
	Kind    string `json:"kind"`
	Workers int    `json:"workers"`
	Busy    int    `json:"busy"`
}

// HandlerHealth mirrors readiness reporting for task handlers.
type HandlerHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool            `json:"running"`
	QueueStats map[string]int  `json:"queueStats"`
	LastError  string          `json:"lastError,omitempty"`
	LastTask   *Task           `json:"lastTask,omitempty"`
	Lanes      []LaneStatus    `json:"lanes"`
	Health     []HandlerHealth `json:"health"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StagingStatus reports the upload staging area.
type StagingStatus struct {
	Dir       string `json:"dir"`
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
	FreeBytes uint64 `json:"freeBytes"`
	Oldest    string `json:"oldest,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt"`
	QueueDBPath  string             `json:"queueDbPath"`
	CatalogPath  string             `json:"catalogPath"`
	LockFilePath string             `json:"lockFilePath"`
	Storage      string             `json:"storage"`
	Connections  int                `json:"connections"`
	Staging      StagingStatus      `json:"staging"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormatTime renders t in the API timestamp layout. The zero time is empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FormatTimePtr is FormatTime for optional timestamps.
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// ParseTime parses a timestamp produced by this package. Invalid values
// yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
