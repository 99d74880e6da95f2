package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/stage"
)

func (m *Manager) processTask(ctx context.Context, lane *laneState, laneLogger *slog.Logger, task *queue.Task) error {
	taskCtx := withTaskContext(ctx, task)
	logger := logging.WithContext(taskCtx, laneLogger)

	m.markBusy(lane.kind, 1)
	defer m.markBusy(lane.kind, -1)

	start := time.Now()
	logger.Info("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String("attempt", attemptLabel(task)),
		logging.String("data", task.Payload.Data),
		logging.String("dest", task.Payload.Dest),
	)

	execErr := m.executeWithHeartbeat(taskCtx, lane.handler, task)
	elapsed := time.Since(start)
	if execErr != nil {
		if ctx.Err() != nil && errors.Is(execErr, context.Canceled) {
			logger.Debug("task interrupted by shutdown")
			return execErr
		}
		m.handleTaskFailure(taskCtx, logger, task, execErr, elapsed)
		return execErr
	}

	removed := false
	if err := m.store.Complete(taskCtx, task.ID); err != nil {
		if !errors.Is(err, queue.ErrTaskNotFound) {
			m.setLastError(err)
			logger.Error("failed to persist task completion", logging.Error(err))
			return err
		}
		removed = true
		logger.Info("task finished after it was cancelled")
	}
	m.metrics.RecordRun(string(task.Kind), string(queue.StatusComplete), elapsed)
	if !removed {
		task.Status = queue.StatusComplete
		task.ProgressPercent = 100
		logger.Info("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Duration("task_duration", elapsed),
		)
		m.notify(taskCtx, logger, "completion", func(ctx context.Context) error {
			return m.notifier.NotifyTaskCompleted(ctx, task, elapsed)
		})
	}
	m.setLastTask(task)

	if cleaner, ok := lane.handler.(stage.Cleaner); ok {
		if err := cleaner.Cleanup(taskCtx, task); err != nil {
			logging.WarnWithContext(logger, "task cleanup failed", "task_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "stale staging files are swept at daemon start"),
				logging.String(logging.FieldImpact, "staged input left on disk"),
			)
		}
	}
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, task *queue.Task) error {
	stop := m.heartbeat.keepAlive(ctx, task.ID)
	defer stop()
	return handler.Execute(ctx, task)
}

func (m *Manager) markBusy(kind queue.Kind, delta int) {
	m.mu.Lock()
	m.busy[kind] += delta
	m.mu.Unlock()
}
