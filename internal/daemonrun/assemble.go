package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mediaferry/internal/auth"
	"mediaferry/internal/blobstore"
	"mediaferry/internal/catalog"
	"mediaferry/internal/config"
	"mediaferry/internal/daemon"
	"mediaferry/internal/deps"
	"mediaferry/internal/encoding"
	"mediaferry/internal/metrics"
	"mediaferry/internal/notifications"
	"mediaferry/internal/processing"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
	"mediaferry/internal/transfer"
	"mediaferry/internal/workflow"
)

// Assemble opens the stores and wires the transfer, workflow and transport
// components into a daemon. The caller owns the returned daemon and must
// Close it.
func Assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	cat, err := catalog.Open(cfg.CatalogDir())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	fail := func(err error) (*daemon.Daemon, error) {
		store.Close()
		cat.Close()
		return nil, err
	}

	final, err := blobstore.Open(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("open media store: %w", err))
	}
	staged, err := blobstore.NewFS(cfg.Paths.StagingDir)
	if err != nil {
		return fail(fmt.Errorf("open staging store: %w", err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sockets := registry.New()
	transfers := transfer.NewManager(transfer.Dependencies{
		Registry: sockets,
		Auth:     auth.NewAuthenticator(cfg.Server.SessionSecret, cat.Users),
		Entities: cat.Entities,
		Store:    final,
		Staging:  staged,
		Tasks:    store,
		Metrics:  metrics.NewTransferMetrics(reg),
	}, transfer.OptionsFromConfig(cfg), logger)

	workDir := filepath.Join(cfg.Paths.DataDir, "work")
	handlerDeps := processing.Dependencies{
		Tasks:    store,
		Staging:  staged,
		Final:    final,
		Encoder:  encoding.NewRunner(cfg, logger),
		Entities: cat.Entities,
		WorkDir:  workDir,
		Tools:    deps.EncodingRequirements(cfg),
	}
	uploadDeps := handlerDeps
	uploadDeps.Tools = nil

	wf := workflow.NewManager(cfg, store, logger,
		workflow.WithMetrics(metrics.NewTaskMetrics(reg)),
		workflow.WithNotifier(notifications.NewService(cfg)),
	)
	wf.ConfigureHandlers(workflow.HandlerSet{
		Image:  processing.NewImageHandler(handlerDeps, logger),
		Video:  processing.NewVideoHandler(handlerDeps, logger),
		Upload: processing.NewUploadHandler(uploadDeps, logger),
	})

	d, err := daemon.New(cfg, daemon.Components{
		Store:        store,
		Catalog:      cat,
		Registry:     sockets,
		Transfers:    transfers,
		Workflow:     wf,
		Metrics:      reg,
		WorkDir:      workDir,
		StorageLabel: storageLabel(cfg),
	}, logger)
	if err != nil {
		return fail(err)
	}
	return d, nil
}

func storageLabel(cfg *config.Config) string {
	switch cfg.Storage.Backend {
	case config.StorageBackendS3:
		label := "s3://" + cfg.Storage.Bucket
		if cfg.Storage.Prefix != "" {
			label += "/" + cfg.Storage.Prefix
		}
		return label
	default:
		return cfg.Storage.Root
	}
}
