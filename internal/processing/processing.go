package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"mediaferry/internal/blobstore"
	"mediaferry/internal/deps"
	"mediaferry/internal/encoding"
	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/queue"
	"mediaferry/internal/services"
	"mediaferry/internal/stage"
)

// Tasks is the part of the queue handlers report into.
type Tasks interface {
	UpdateProgress(ctx context.Context, id int64, percent float64, message string) error
	ReferencesSource(ctx context.Context, key string, excludeID int64) (bool, error)
}

// Encoder is the transcoder contract.
type Encoder interface {
	Image(ctx context.Context, src, dst string) error
	Video(ctx context.Context, src, dst string, duration float64, progress encoding.ProgressFunc) error
	Poster(ctx context.Context, src, dst string, duration float64) error
	Probe(ctx context.Context, path string) (media.Geometry, error)
}

// Entities is the catalog contract used to record probed geometry.
type Entities interface {
	GetByID(ctx context.Context, id string) (*media.Entity, error)
	Update(ctx context.Context, entity *media.Entity) error
}

// Dependencies are the collaborators shared by every handler.
type Dependencies struct {
	Tasks    Tasks
	Staging  *blobstore.FSStore
	Final    blobstore.Store
	Encoder  Encoder
	Entities Entities
	// WorkDir holds per-task scratch directories for encoder output.
	WorkDir string
	// Tools are checked by the transcoding handlers' health checks.
	Tools []deps.Requirement
}

type base struct {
	name   string
	deps   Dependencies
	logger *slog.Logger
}

func newBase(name string, d Dependencies, logger *slog.Logger) base {
	if logger == nil {
		logger = logging.NewNop()
	}
	return base{name: name, deps: d, logger: logging.NewComponentLogger(logger, "processing-"+name)}
}

func (b base) taskLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, b.logger)
}

// stagedPath resolves the task input. A key the staging area refuses is
// permanent; a missing input is retried like any other failure.
func (b base) stagedPath(task *queue.Task) (string, error) {
	path, err := b.deps.Staging.Path(task.Payload.Data)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, b.name, "resolve input", "invalid staging key", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrValidation, b.name, "resolve input", "staged input missing", err)
		}
		return "", services.Wrap(services.ErrTransient, b.name, "resolve input", "stat staged input", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, b.name, "resolve input", "staged input is a directory", nil)
	}
	return path, nil
}

// scratch creates a per-task directory for encoder output. The caller
// removes it.
func (b base) scratch(task *queue.Task) (string, error) {
	if err := os.MkdirAll(b.deps.WorkDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, b.name, "scratch", "create work directory", err)
	}
	dir, err := os.MkdirTemp(b.deps.WorkDir, fmt.Sprintf("%s-%d-*", b.name, task.ID))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, b.name, "scratch", "create scratch directory", err)
	}
	return dir, nil
}

// publish copies a local file to key in the final store.
func (b base) publish(ctx context.Context, key, localPath string) error {
	var err error
	if uploader, ok := b.deps.Final.(blobstore.FileUploader); ok {
		err = uploader.UploadFile(ctx, key, localPath)
	} else {
		var data []byte
		if data, err = os.ReadFile(localPath); err == nil {
			err = b.deps.Final.Upload(ctx, key, data)
		}
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, b.name, "publish", "write "+key, err)
	}
	return nil
}

func (b base) progress(ctx context.Context, task *queue.Task, percent float64, message string) {
	if err := b.deps.Tasks.UpdateProgress(ctx, task.ID, percent, message); err != nil {
		b.taskLogger(ctx).Debug("progress update failed", logging.Error(err))
	}
}

// Cleanup deletes the staged input once no other task may still read it.
func (b base) Cleanup(ctx context.Context, task *queue.Task) error {
	key := strings.TrimSpace(task.Payload.Data)
	if key == "" {
		return nil
	}
	held, err := b.deps.Tasks.ReferencesSource(ctx, key, task.ID)
	if err != nil {
		return fmt.Errorf("check source references: %w", err)
	}
	logger := b.taskLogger(ctx)
	if held {
		logger.Debug("staged input still referenced", logging.String("data", key))
		return nil
	}
	if err := b.deps.Staging.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete staged input: %w", err)
	}
	logger.Debug("staged input removed", logging.String("data", key))
	return nil
}

// HealthCheck reports the handler ready when every required tool exists.
func (b base) HealthCheck(context.Context) stage.Health {
	return stage.FromDependencies(b.name, deps.CheckBinaries(b.deps.Tools))
}
