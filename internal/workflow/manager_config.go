package workflow

import (
	"mediaferry/internal/queue"
	"mediaferry/internal/stage"
)

// ConfigureHandlers registers the handlers the workflow will run. Kinds
// without a handler get no lane and their tasks stay queued.
func (m *Manager) ConfigureHandlers(set HandlerSet) {
	candidates := []struct {
		kind    queue.Kind
		handler stage.Handler
		workers int
	}{
		{queue.KindImage, set.Image, m.cfg.Tasks.ImageConcurrency},
		{queue.KindVideo, set.Video, m.cfg.Tasks.VideoConcurrency},
		{queue.KindUpload, set.Upload, m.cfg.Tasks.UploadConcurrency},
	}

	lanes := make(map[queue.Kind]*laneState, len(candidates))
	order := make([]queue.Kind, 0, len(candidates))
	for _, c := range candidates {
		if c.handler == nil {
			continue
		}
		workers := c.workers
		if workers < 1 {
			workers = 1
		}
		lanes[c.kind] = &laneState{kind: c.kind, handler: c.handler, workers: workers}
		order = append(order, c.kind)
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
