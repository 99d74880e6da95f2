package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
)

// heartbeat keeps claimed tasks marked alive and returns tasks whose worker
// went quiet for longer than timeout.
type heartbeat struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func newHeartbeat(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeat {
	return &heartbeat{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "heartbeat"),
		interval: interval,
		timeout:  timeout,
	}
}

// reclaim puts stale active tasks back on the queue and reports how many.
func (h *heartbeat) reclaim(ctx context.Context) (int64, error) {
	if h.timeout <= 0 {
		return 0, nil
	}
	return h.store.ReclaimStale(ctx, time.Now().Add(-h.timeout))
}

// keepAlive refreshes the task's heartbeat until the returned stop func is
// called. stop waits for the refresher to exit.
func (h *heartbeat) keepAlive(ctx context.Context, taskID int64) (stop func()) {
	if h.interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	logger := logging.WithContext(ctx, h.logger).With(logging.TaskID(taskID))

	go func() {
		defer close(done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := h.store.UpdateHeartbeat(ctx, taskID)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			default:
				logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_update_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "task may be reclaimed while still running"),
				)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
