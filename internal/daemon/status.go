package daemon

import (
	"context"
	"os"

	"mediaferry/internal/api"
	"mediaferry/internal/deps"
	"mediaferry/internal/logging"
	"mediaferry/internal/staging"
)

// Status assembles the daemon status document.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.comp.Store.Path(),
		CatalogPath:  d.cfg.CatalogDir(),
		LockFilePath: d.lockPath,
		Storage:      d.comp.StorageLabel,
		Connections:  d.comp.Registry.Len(),
		Workflow:     api.FromStatusSummary(d.comp.Workflow.Status(ctx)),
		Dependencies: api.FromDependencies(deps.CheckBinaries(deps.EncodingRequirements(d.cfg))),
		Staging:      api.StagingStatus{Dir: d.cfg.Paths.StagingDir},
	}
	status.StartedAt = api.FormatTime(startedAt)

	if usage, err := staging.Measure(d.cfg.Paths.StagingDir); err != nil {
		d.logger.Debug("staging usage unavailable", logging.Error(err))
	} else {
		status.Staging.Entries = usage.Entries
		status.Staging.Bytes = usage.Bytes
		status.Staging.Oldest = api.FormatTime(usage.Oldest)
	}
	if free, err := freeBytes(d.cfg.Paths.StagingDir); err != nil {
		d.logger.Debug("staging free space unavailable", logging.Error(err))
	} else {
		status.Staging.FreeBytes = free
	}
	return status
}
