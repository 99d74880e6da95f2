package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"mediaferry/internal/config"
	"mediaferry/internal/deps"
	"mediaferry/internal/fileutil"
	"mediaferry/internal/logging"
	"mediaferry/internal/preflight"
)

// Options tunes the daemon process.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// Run assembles and starts the daemon, then blocks until ctx ends or the
// process receives SIGINT or SIGTERM.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("daemonrun: config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logStartupChecks(ctx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "mediaferryd.pid")
	if err := fileutil.WriteFileAtomic(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := Assemble(ctx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon assembly failed", "daemon_assemble_failed", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check bind addresses and the data directory lock"),
			logging.String(logging.FieldImpact, "no transfers or tasks are processed"),
		)
		return err
	}

	<-ctx.Done()
	logger.Info("mediaferry daemon shutting down")
	return nil
}

// logStartupChecks records tool availability and warns about failing
// preflight checks. Nothing here stops the daemon; Start reports the fatal
// cases itself.
func logStartupChecks(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Server.APIToken) != ""),
	}
	for _, status := range deps.CheckBinaries(deps.EncodingRequirements(cfg)) {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "dependency snapshot", attrs...)

	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run mediaferryd --check for the full report"),
		)
	}
}
