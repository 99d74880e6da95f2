package workflow

import (
	"log/slog"

	"mediaferry/internal/queue"
	"mediaferry/internal/stage"
)

// HandlerSet bundles the concrete task handlers the manager orchestrates.
type HandlerSet struct {
	Image  stage.Handler
	Video  stage.Handler
	Upload stage.Handler
}

type laneState struct {
	kind    queue.Kind
	handler stage.Handler
	workers int
	logger  *slog.Logger
}

// LaneStatus is a lane's configuration and live worker usage.
type LaneStatus struct {
	Kind    queue.Kind `json:"kind"`
	Workers int        `json:"workers"`
	Busy    int        `json:"busy"`
}
