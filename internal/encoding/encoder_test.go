package encoding_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaferry/internal/encoding"
	"mediaferry/internal/logging"
	"mediaferry/internal/media/ffprobe"
	"mediaferry/internal/services"
	"mediaferry/internal/testsupport"
)

const progressStub = `#!/bin/sh
for last; do :; done
printf 'frame=1\nout_time_us=500000\nprogress=continue\nout_time_us=1000000\nprogress=continue\nprogress=end\n'
printf 'data' > "$last"
`

func newRunner(t *testing.T, script string) (*encoding.Runner, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cfg.Encoding.FFmpegBinary = stub
	return encoding.NewRunner(cfg, logging.NewNop()), dir
}

func TestVideoReportsProgress(t *testing.T) {
	runner, dir := newRunner(t, progressStub)
	dst := filepath.Join(dir, "out.mp4")

	var reports []float64
	err := runner.Video(context.Background(), filepath.Join(dir, "in.mov"), dst, 2, func(p float64) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("video: %v", err)
	}
	want := []float64{25, 50, 100}
	if len(reports) != len(want) {
		t.Fatalf("expected reports %v, got %v", want, reports)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Fatalf("expected reports %v, got %v", want, reports)
		}
	}
}

func TestImageWritesOutput(t *testing.T) {
	runner, dir := newRunner(t, progressStub)
	dst := filepath.Join(dir, "out.webp")
	if err := runner.Image(context.Background(), filepath.Join(dir, "in.png"), dst); err != nil {
		t.Fatalf("image: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected output: %v", err)
	}
}

func TestFailureCarriesStderr(t *testing.T) {
	runner, dir := newRunner(t, "#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n")
	err := runner.Poster(context.Background(), filepath.Join(dir, "in.mov"), filepath.Join(dir, "out.webp"), 10)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("tool failures should be retryable")
	}
}

func TestMissingOutputIsRetried(t *testing.T) {
	runner, dir := newRunner(t, "#!/bin/sh\nexit 0\n")
	err := runner.Image(context.Background(), filepath.Join(dir, "in.png"), filepath.Join(dir, "out.webp"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("missing output should be retried")
	}
}

func TestProbeUsesOverride(t *testing.T) {
	runner, _ := newRunner(t, progressStub)
	runner.WithProbe(func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		if path != "clip.mp4" {
			t.Fatalf("unexpected probe path %q", path)
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", Width: 320, Height: 240}},
			Format:  ffprobe.Format{Duration: "4.5", Size: "99"},
		}, nil
	})

	geometry, err := runner.Probe(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if geometry.Width != 320 || geometry.Height != 240 || geometry.Duration != 4.5 || geometry.Size != 99 {
		t.Fatalf("unexpected geometry: %+v", geometry)
	}
}

func TestProbeFailureIsToolError(t *testing.T) {
	runner, _ := newRunner(t, progressStub)
	runner.WithProbe(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("boom")
	})

	if _, err := runner.Probe(context.Background(), "clip.mp4"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
