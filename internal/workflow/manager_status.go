package workflow

import (
	"context"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool
	LastError     string
	LastTask      *queue.Task
	QueueStats    map[queue.Status]int
	Lanes         []LaneStatus
	HandlerHealth map[queue.Kind]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastTask := m.lastTask
	lanes := make([]*laneState, 0, len(m.laneOrder))
	laneStatus := make([]LaneStatus, 0, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil {
			continue
		}
		lanes = append(lanes, lane)
		laneStatus = append(laneStatus, LaneStatus{Kind: kind, Workers: lane.workers, Busy: m.busy[kind]})
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[queue.Kind]stage.Health, len(lanes))
	for _, lane := range lanes {
		health[lane.kind] = lane.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, Lanes: laneStatus, HandlerHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastTask != nil {
		copy := *lastTask
		summary.LastTask = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(task *queue.Task) {
	m.mu.Lock()
	if task != nil {
		copy := *task
		m.lastTask = &copy
	} else {
		m.lastTask = nil
	}
	m.mu.Unlock()
}
