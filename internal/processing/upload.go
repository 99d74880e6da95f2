package processing

import (
	"context"
	"log/slog"

	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/queue"
)

// UploadHandler copies originals into the final store.
type UploadHandler struct {
	base
}

// NewUploadHandler constructs the upload task handler.
func NewUploadHandler(d Dependencies, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{base: newBase("upload", d, logger)}
}

// Execute publishes the staged original and records its probed geometry on
// the source it was uploaded into.
func (h *UploadHandler) Execute(ctx context.Context, task *queue.Task) error {
	src, err := h.stagedPath(task)
	if err != nil {
		return err
	}
	h.progress(ctx, task, 10, "Publishing original")
	if err := h.publish(ctx, task.Payload.Dest, src); err != nil {
		return err
	}
	h.progress(ctx, task, 80, "Reading geometry")
	h.recordGeometry(ctx, task, src)
	h.taskLogger(ctx).Info("original published", logging.String("dest", task.Payload.Dest))
	return nil
}

// recordGeometry is best effort: a file ffprobe cannot read is still a
// valid upload.
func (h *UploadHandler) recordGeometry(ctx context.Context, task *queue.Task, src string) {
	if h.deps.Entities == nil || h.deps.Encoder == nil || task.Payload.EntityID == "" {
		return
	}
	logger := h.taskLogger(ctx).With(logging.EntityID(task.Payload.EntityID))

	probed, err := h.deps.Encoder.Probe(ctx, src)
	if err != nil {
		logger.Info("geometry unavailable", logging.Error(err))
		return
	}

	entity, err := h.deps.Entities.GetByID(ctx, task.Payload.EntityID)
	if err != nil {
		logger.Info("entity gone before geometry update", logging.Error(err))
		return
	}
	ref := media.SourceRef{MainID: task.Payload.EntityID, MediaID: task.Payload.MediaID, SourceID: task.Payload.SourceID}
	_, source, err := media.Resolve(entity, ref)
	if err != nil || source.Src != task.Payload.Dest {
		logger.Info("source replaced before geometry update", logging.String("dest", task.Payload.Dest))
		return
	}

	source.Geometry.Width = probed.Width
	source.Geometry.Height = probed.Height
	source.Geometry.Duration = probed.Duration
	if source.Geometry.Size == 0 {
		source.Geometry.Size = probed.Size
	}
	if err := h.deps.Entities.Update(ctx, entity); err != nil {
		logging.WarnWithContext(logger, "geometry update failed", "geometry_update_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog storage"),
			logging.String(logging.FieldImpact, "source dimensions stay unknown"),
		)
	}
}
