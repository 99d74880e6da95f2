package processing

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
)

// ImageHandler transcodes stills into the preview format.
type ImageHandler struct {
	base
}

// NewImageHandler constructs the image task handler.
func NewImageHandler(d Dependencies, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{base: newBase("image", d, logger)}
}

// Execute renders the preview and publishes it to the task's destination.
func (h *ImageHandler) Execute(ctx context.Context, task *queue.Task) error {
	src, err := h.stagedPath(task)
	if err != nil {
		return err
	}
	dir, err := h.scratch(task)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "preview"+path.Ext(task.Payload.Dest))
	h.progress(ctx, task, 10, "Transcoding image")
	if err := h.deps.Encoder.Image(ctx, src, dst); err != nil {
		return err
	}
	h.progress(ctx, task, 80, "Publishing preview")
	if err := h.publish(ctx, task.Payload.Dest, dst); err != nil {
		return err
	}
	h.taskLogger(ctx).Info("image preview published", logging.String("dest", task.Payload.Dest))
	return nil
}
