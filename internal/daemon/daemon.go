package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"mediaferry/internal/api"
	"mediaferry/internal/catalog"
	"mediaferry/internal/config"
	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
	"mediaferry/internal/staging"
	"mediaferry/internal/transport"
	"mediaferry/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

// Transfers is the transfer manager surface the daemon owns.
type Transfers interface {
	transport.Transfers
	Wait()
}

// Components are the services the daemon runs. Store, Catalog, Registry,
// Transfers and Workflow are required.
type Components struct {
	Store     *queue.Store
	Catalog   *catalog.Catalog
	Registry  *registry.Registry
	Transfers Transfers
	Workflow  *workflow.Manager
	// Metrics is served on /metrics when set.
	Metrics *prometheus.Registry
	// WorkDir holds task scratch directories swept alongside staging.
	WorkDir string
	// StorageLabel describes the final store in status output.
	StorageLabel string
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	comp   Components

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	loops     sync.WaitGroup
	sockets   *transport.Server
	servers   []*http.Server
	addrs     map[string]string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, comp Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || comp.Store == nil || comp.Catalog == nil || comp.Registry == nil || comp.Transfers == nil || comp.Workflow == nil {
		return nil, errors.New("daemon requires config, store, catalog, registry, transfers, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		comp:     comp,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		addrs:    make(map[string]string),
	}
	d.registerGauges()
	return d, nil
}

// Start acquires the daemon lock, recovers state left by a previous run,
// launches the workflow manager and begins serving the socket and admin
// endpoints.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaferry daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.recover(runCtx)

	if err := d.comp.Workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.sockets = transport.NewServer(runCtx, d.comp.Registry, d.comp.Transfers, transport.ConfigFromConfig(d.cfg), d.logger)
	if err := d.serve(runCtx, "socket", d.cfg.Server.Bind, d.socketRouter()); err != nil {
		d.abort(cancel)
		return err
	}
	if strings.TrimSpace(d.cfg.Server.AdminBind) != "" {
		if err := d.serve(runCtx, "admin", d.cfg.Server.AdminBind, d.adminRouter()); err != nil {
			d.abort(cancel)
			return err
		}
	}

	d.loops.Add(1)
	go d.sweepLoop(runCtx)

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("mediaferry daemon started",
		logging.String("lock", d.lockPath),
		logging.String("socket_addr", d.addrs["socket"]),
		logging.String("admin_addr", d.addrs["admin"]),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// recover resets tasks a crash left active and removes staged files that no
// task holds. It runs before the socket server accepts uploads.
func (d *Daemon) recover(ctx context.Context) {
	if reset, err := d.comp.Store.ResetActive(ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to reset active tasks", "task_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "interrupted tasks wait for heartbeat reclaim"),
		)
	} else if reset > 0 {
		d.logger.Info("reset interrupted tasks",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "task_recovery"),
		)
	}

	held, err := d.comp.Store.HeldSources(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "skipping staging cleanup", "staging_cleanup_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "abandoned uploads are not reclaimed"),
		)
		return
	}
	staging.CleanOrphaned(ctx, d.cfg.Paths.StagingDir, held, d.logger)
	if d.comp.WorkDir != "" {
		staging.CleanOrphaned(ctx, d.comp.WorkDir, nil, d.logger)
	}
}

func (d *Daemon) serve(ctx context.Context, name, bind string, handler http.Handler) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("%s listen: %w", name, err)
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	d.servers = append(d.servers, server)
	d.addrs[name] = listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(d.logger, name+" server error", "server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check bind address "+bind),
			)
		}
	}()
	d.logger.Info(name+" server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (d *Daemon) abort(cancel context.CancelFunc) {
	d.shutdownServers()
	d.comp.Workflow.Stop()
	cancel()
	_ = d.lock.Unlock()
}

// Stop closes every socket, waits for transfers, stops the workers and
// releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.shutdownServers()
	d.comp.Transfers.Wait()
	d.comp.Workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loops.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediaferry daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) shutdownServers() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if d.sockets != nil {
		if err := d.sockets.Shutdown(ctx); err != nil {
			d.logger.Warn("sockets did not close in time", logging.Error(err))
		}
		d.sockets = nil
	}
	for _, server := range d.servers {
		_ = server.Shutdown(ctx)
	}
	d.servers = nil
	d.addrs = make(map[string]string)
}

// Close stops the daemon and releases the stores.
func (d *Daemon) Close() error {
	d.Stop()
	return errors.Join(d.comp.Store.Close(), d.comp.Catalog.Close())
}

// Addr returns the bound address of the named server ("socket" or "admin").
func (d *Daemon) Addr(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addrs[name]
}

// Running reports whether the daemon is started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// StagingSweep removes staged inputs older than the configured age that no
// task holds.
func (d *Daemon) StagingSweep(ctx context.Context) staging.CleanResult {
	maxAge := time.Duration(d.cfg.Tasks.StaleTempHours) * time.Hour
	held, err := d.comp.Store.HeldSources(ctx)
	if err != nil {
		d.logger.Warn("staging sweep skipped", logging.Error(err))
		return staging.CleanResult{}
	}
	result := staging.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, held, d.logger)
	if d.comp.WorkDir != "" {
		scratch := staging.CleanStale(ctx, d.comp.WorkDir, maxAge, nil, d.logger)
		result.Removed = append(result.Removed, scratch.Removed...)
		result.Errors = append(result.Errors, scratch.Errors...)
	}
	return result
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	defer d.loops.Done()
	interval := time.Duration(d.cfg.Tasks.StaleTempHours) * time.Hour / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.StagingSweep(ctx)
		}
	}
}

var _ api.TaskStore = (*queue.Store)(nil)
