package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/services"
)

func (m *Manager) laneLogger(lane *laneState, worker int) *slog.Logger {
	return m.logger.With(
		logging.String("lane", string(lane.kind)),
		logging.Int("worker", worker),
	)
}

func withTaskContext(ctx context.Context, task *queue.Task) context.Context {
	ctx = services.WithTaskID(ctx, task.ID)
	return services.WithTaskKind(ctx, string(task.Kind))
}

func attemptLabel(task *queue.Task) string {
	return fmt.Sprintf("%d/%d", task.Attempts, task.AttemptsAllowed)
}
