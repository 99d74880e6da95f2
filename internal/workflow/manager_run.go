package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediaferry/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		if lane := m.lanes[kind]; lane != nil {
			lanes = append(lanes, lane)
		}
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow handlers not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := 0
	for _, lane := range lanes {
		workers += lane.workers
	}
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	go m.runMaintenance(runCtx)
	for _, lane := range lanes {
		for i := range lane.workers {
			go m.runWorker(runCtx, lane, m.laneLogger(lane, i))
		}
	}
	m.logger.Info("workflow started", logging.Int("workers", workers), logging.Int("lanes", len(lanes)))
	return nil
}

// Stop terminates background processing and waits for in-flight tasks to
// observe cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, lane *laneState, logger *slog.Logger) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := m.store.ClaimNext(ctx, lane.kind)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logging.ErrorWithContext(logger, "failed to claim next task", "queue_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.waitForTaskOrShutdown(ctx)
			continue
		}
		if task == nil {
			m.waitForTaskOrShutdown(ctx)
			continue
		}

		if err := m.processTask(ctx, lane, logger, task); errors.Is(err, context.Canceled) {
			return
		}
	}
}

func (m *Manager) runMaintenance(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", "maintenance"))
	for {
		if reclaimed, err := m.heartbeat.reclaim(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(logger, "reclaim stale tasks failed; stuck tasks may remain", "heartbeat_reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "tasks orphaned by a crashed worker stay active"),
			)
		} else if reclaimed > 0 {
			logger.Info("reclaimed stale tasks", logging.Int64("count", reclaimed))
		}
		if promoted, err := m.store.PromoteDelayed(ctx, time.Now()); err != nil && ctx.Err() == nil {
			logger.Warn("promote delayed tasks failed", logging.Error(err))
		} else if promoted > 0 {
			logger.Debug("promoted delayed tasks", logging.Int64("count", promoted))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.maintenanceInterval()):
		}
	}
}

func (m *Manager) maintenanceInterval() time.Duration {
	interval := m.heartbeat.interval
	if m.pollInterval > interval {
		interval = m.pollInterval
	}
	if interval <= 0 {
		interval = time.Second
	}
	return interval
}

func (m *Manager) waitForTaskOrShutdown(ctx context.Context) {
	interval := m.pollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
