package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind names the processing a task performs.
type Kind string

const (
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindUpload Kind = "upload"
)

// Kinds returns every task kind in dispatch order.
func Kinds() []Kind {
	return []Kind{KindImage, KindVideo, KindUpload}
}

// ParseKind normalizes a user-supplied kind.
func ParseKind(value string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch k {
	case KindImage, KindVideo, KindUpload:
		return k, true
	default:
		return "", false
	}
}

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusDelayed  Status = "delayed"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusInactive, StatusActive, StatusDelayed, StatusComplete, StatusFailed}
}

// ParseStatus normalizes a user-supplied status filter.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range AllStatuses() {
		if s == status {
			return status, true
		}
	}
	return "", false
}

// holdingStatuses are the states in which a task may still read its source.
// Failed tasks keep their input so they can be restarted.
var holdingStatuses = []Status{StatusInactive, StatusActive, StatusDelayed, StatusFailed}

// Payload is the typed task input.
type Payload struct {
	// Data is the staging key of the uploaded bytes.
	Data string `json:"data"`
	// Dest is the final store key of the main artifact.
	Dest string `json:"dest"`
	// FallbackDest is the poster frame key; video tasks only.
	FallbackDest string `json:"fallbackDest,omitempty"`
	EntityID     string `json:"entityId,omitempty"`
	MediaID      string `json:"mediaId,omitempty"`
	SourceID     string `json:"sourceId,omitempty"`
}

func (p Payload) validate(kind Kind) error {
	if strings.TrimSpace(p.Data) == "" {
		return fmt.Errorf("%s task: data key is required", kind)
	}
	if strings.TrimSpace(p.Dest) == "" {
		return fmt.Errorf("%s task: dest key is required", kind)
	}
	if kind == KindVideo && strings.TrimSpace(p.FallbackDest) == "" {
		return fmt.Errorf("%s task: fallback dest key is required", kind)
	}
	return nil
}

func encodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// Task is a persisted unit of post-upload work.
type Task struct {
	ID              int64
	Kind            Kind
	Status          Status
	Payload         Payload
	Attempts        int
	AttemptsAllowed int
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	RunAfter        *time.Time
	LastHeartbeat   *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AttemptsLeft reports how many more times the task may run.
func (t Task) AttemptsLeft() int {
	left := t.AttemptsAllowed - t.Attempts
	if left < 0 {
		return 0
	}
	return left
}
