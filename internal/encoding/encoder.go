package encoding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"mediaferry/internal/config"
	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/media/ffprobe"
	"mediaferry/internal/services"
)

// ProgressFunc receives the completed share of a video encode, 0 to 100.
type ProgressFunc func(percent float64)

// ProbeFunc reads container metadata using the ffprobe binary at its
// second argument.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Runner invokes ffmpeg and ffprobe.
type Runner struct {
	ffmpeg       string
	ffprobeBin   string
	probe        ProbeFunc
	imageQuality int
	videoCRF     int
	posterOffset float64
	logger       *slog.Logger
}

// NewRunner builds a Runner from the encoding configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		ffmpeg:       cfg.Encoding.FFmpegBinary,
		ffprobeBin:   cfg.Encoding.FFprobeBinary,
		probe:        ffprobe.Inspect,
		imageQuality: cfg.Encoding.ImageQuality,
		videoCRF:     cfg.Encoding.VideoCRF,
		posterOffset: cfg.Encoding.PosterOffset,
		logger:       logging.NewComponentLogger(logger, "encoding"),
	}
}

// Image transcodes a still (or the first frame of anything ffmpeg reads)
// into the format implied by dst's extension.
func (r *Runner) Image(ctx context.Context, src, dst string) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-i", src,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(r.imageQuality),
		dst,
	}
	if err := r.run(ctx, "image", args, nil); err != nil {
		return err
	}
	return validateOutput("image", dst)
}

// Poster extracts one frame from a video. Clips shorter than the configured
// offset use their first frame.
func (r *Runner) Poster(ctx context.Context, src, dst string, duration float64) error {
	offset := r.posterOffset
	if duration > 0 && offset >= duration {
		offset = 0
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(r.imageQuality),
		dst,
	}
	if err := r.run(ctx, "poster", args, nil); err != nil {
		return err
	}
	return validateOutput("poster", dst)
}

// Video transcodes src into a streamable H.264/AAC file. When duration is
// known, progress is reported as ffmpeg advances through the input.
func (r *Runner) Video(ctx context.Context, src, dst string, duration float64, progress ProgressFunc) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", strconv.Itoa(r.videoCRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		dst,
	}
	var sink func(io.Reader) error
	if progress != nil {
		sink = func(stdout io.Reader) error {
			return ParseProgress(stdout, duration, progress)
		}
	}
	if err := r.run(ctx, "video", args, sink); err != nil {
		return err
	}
	return validateOutput("video", dst)
}

// WithProbe replaces the metadata reader used by Probe.
func (r *Runner) WithProbe(fn ProbeFunc) *Runner {
	if fn != nil {
		r.probe = fn
	}
	return r
}

// Probe reads the geometry of a media file.
func (r *Runner) Probe(ctx context.Context, path string) (media.Geometry, error) {
	result, err := r.probe(ctx, r.ffprobeBin, path)
	if err != nil {
		return media.Geometry{}, services.Wrap(
			services.ErrExternalTool,
			"encoding",
			"probe",
			"ffprobe could not read the file",
			err,
		)
	}
	return result.Geometry(), nil
}

func (r *Runner) run(ctx context.Context, operation string, args []string, stdoutSink func(io.Reader) error) error {
	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("launching ffmpeg",
		logging.String("operation", operation),
		logging.String("command", r.ffmpeg+" "+strings.Join(args, " ")),
	)

	var sinkErr error
	if stdoutSink != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "encoding", operation, "open ffmpeg output", err)
		}
		if err := cmd.Start(); err != nil {
			return services.Wrap(services.ErrExternalTool, "encoding", operation, "start ffmpeg", err)
		}
		sinkErr = stdoutSink(stdout)
		// drain so ffmpeg never blocks on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
		err = cmd.Wait()
		if err == nil && sinkErr != nil {
			r.logger.Warn("ffmpeg progress unreadable", logging.Error(sinkErr))
		}
		return r.wrapRunError(ctx, operation, err, stderr.String())
	}
	return r.wrapRunError(ctx, operation, cmd.Run(), stderr.String())
}

func (r *Runner) wrapRunError(ctx context.Context, operation string, err error, stderr string) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	detail := lastLines(stderr, 3)
	if detail == "" {
		detail = "ffmpeg exited without output"
	}
	return services.Wrap(
		services.ErrExternalTool,
		"encoding",
		operation,
		detail,
		err,
	)
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

func describe(operation, path string) string {
	return fmt.Sprintf("%s output %s", operation, path)
}
