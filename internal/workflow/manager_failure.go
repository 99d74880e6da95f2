package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/services"
)

func (m *Manager) handleTaskFailure(ctx context.Context, logger *slog.Logger, task *queue.Task, taskErr error, elapsed time.Duration) {
	m.setLastError(taskErr)
	retryable := services.Retryable(taskErr)

	status, err := m.store.Fail(ctx, task.ID, taskErr, retryable, m.backoff)
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			logger.Info("task failed after it was cancelled", logging.Error(taskErr))
			return
		}
		logger.Error("failed to persist task failure", logging.Error(err), logging.String("task_error", taskErr.Error()))
		return
	}
	m.metrics.RecordRun(string(task.Kind), string(status), elapsed)
	task.Status = status
	task.ErrorMessage = taskErr.Error()
	m.setLastTask(task)

	attrs := []logging.Attr{
		logging.Error(taskErr),
		logging.String("attempt", attemptLabel(task)),
		logging.Bool("retryable", retryable),
		logging.String("resolved_status", string(status)),
		logging.Duration("task_duration", elapsed),
	}
	if status == queue.StatusDelayed {
		delay := queue.RetryDelay(m.backoff, task.Attempts)
		logging.WarnWithContext(logger, "task failed; retry scheduled", "task_retry",
			append(attrs,
				logging.Duration("retry_in", delay),
				logging.String(logging.FieldErrorHint, "the task will run again after the backoff"),
				logging.String(logging.FieldImpact, "derived media delayed"),
			)...,
		)
		return
	}
	logging.ErrorWithContext(logger, "task failed", "task_failure",
		append(attrs,
			logging.String(logging.FieldErrorHint, "inspect the error and restart the task from the task manager"),
		)...,
	)
	m.notify(ctx, logger, "failure", func(ctx context.Context) error {
		return m.notifier.NotifyTaskFailed(ctx, task, taskErr)
	})
}

// notify delivers a notification outside the task's cancellation so a
// shutdown does not drop it. Delivery failures are logged only.
func (m *Manager) notify(ctx context.Context, logger *slog.Logger, what string, send func(context.Context) error) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := send(ctx); err != nil {
		logging.WarnWithContext(logger, "task notification failed", "notification_failed",
			logging.Error(err),
			logging.String("notification", what),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "operators were not alerted"),
		)
	}
}
