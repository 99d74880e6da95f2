package processing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"mediaferry/internal/logging"
	"mediaferry/internal/queue"
)

// encodeShare is the part of a video task's progress spent in ffmpeg.
const encodeShare = 80.0

// VideoHandler transcodes videos and extracts their poster frame.
type VideoHandler struct {
	base
}

// NewVideoHandler constructs the video task handler.
func NewVideoHandler(d Dependencies, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{base: newBase("video", d, logger)}
}

// Execute renders the web video and the poster side by side, then publishes
// both. The task succeeds only when both outputs are in the final store.
func (h *VideoHandler) Execute(ctx context.Context, task *queue.Task) error {
	src, err := h.stagedPath(task)
	if err != nil {
		return err
	}
	dir, err := h.scratch(task)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	logger := h.taskLogger(ctx)

	duration := 0.0
	if geometry, err := h.deps.Encoder.Probe(ctx, src); err != nil {
		logging.WarnWithContext(logger, "video probe failed; progress unavailable", "video_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ffprobe binary"),
			logging.String(logging.FieldImpact, "encode progress stays at 0 until completion"),
		)
	} else {
		duration = geometry.Duration
	}

	preview := filepath.Join(dir, "preview"+path.Ext(task.Payload.Dest))
	poster := filepath.Join(dir, "poster"+path.Ext(task.Payload.FallbackDest))

	h.progress(ctx, task, 0, "Encoding video and poster frame")
	encode, encodeCtx := errgroup.WithContext(ctx)
	encode.Go(func() error {
		return h.deps.Encoder.Video(encodeCtx, src, preview, duration, func(percent float64) {
			h.progress(ctx, task, percent*encodeShare/100, fmt.Sprintf("Encoding video %.0f%%", percent))
		})
	})
	encode.Go(func() error { return h.deps.Encoder.Poster(encodeCtx, src, poster, duration) })
	if err := encode.Wait(); err != nil {
		return err
	}

	h.progress(ctx, task, encodeShare+10, "Publishing outputs")
	publish, publishCtx := errgroup.WithContext(ctx)
	publish.Go(func() error { return h.publish(publishCtx, task.Payload.Dest, preview) })
	publish.Go(func() error { return h.publish(publishCtx, task.Payload.FallbackDest, poster) })
	if err := publish.Wait(); err != nil {
		return err
	}

	logger.Info("video outputs published",
		logging.String("dest", task.Payload.Dest),
		logging.String("fallback_dest", task.Payload.FallbackDest),
		logging.Float64("duration_seconds", duration),
	)
	return nil
}
