package workflow

import (
	"log/slog"
	"sync"
	"time"

	"mediaferry/internal/config"
	"mediaferry/internal/logging"
	"mediaferry/internal/metrics"
	"mediaferry/internal/notifications"
	"mediaferry/internal/queue"
)

// Manager coordinates queue processing using registered task handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	backoff      time.Duration
	metrics      *metrics.TaskMetrics
	notifier     notifications.Service

	heartbeat *heartbeat

	lanes     map[queue.Kind]*laneState
	laneOrder []queue.Kind

	mu       sync.RWMutex
	running  bool
	cancel   func()
	wg       sync.WaitGroup
	lastErr  error
	lastTask *queue.Task
	busy     map[queue.Kind]int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMetrics records task outcomes on m.
func WithMetrics(m *metrics.TaskMetrics) ManagerOption {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithNotifier reports terminal failures and completions through svc.
func WithNotifier(svc notifications.Service) ManagerOption {
	return func(mgr *Manager) {
		mgr.notifier = svc
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Tasks.PollInterval) * time.Second,
		backoff:      time.Duration(cfg.Tasks.BackoffSeconds) * time.Second,
		heartbeat: newHeartbeat(
			store,
			logger,
			time.Duration(cfg.Tasks.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Tasks.HeartbeatTimeout)*time.Second,
		),
		lanes: make(map[queue.Kind]*laneState),
		busy:  make(map[queue.Kind]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(cfg)
	}
	return m
}
