package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaferry/internal/config"
)

// TestSessionSecret signs session tokens in tests.
const TestSessionSecret = "test-session-secret"

// ConfigOption adjusts a config produced by NewConfig before its
// directories are created.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: staging, data,
// logs and the fs storage root all live under BaseDir(cfg). Polling is one
// second and retries have no backoff.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths = config.Paths{
		StagingDir: filepath.Join(base, "staging"),
		DataDir:    filepath.Join(base, "data"),
		LogDir:     filepath.Join(base, "logs"),
	}
	cfg.Storage.Root = filepath.Join(base, "media")
	cfg.Server.SessionSecret = TestSessionSecret
	cfg.Tasks.PollInterval = 1
	cfg.Tasks.BackoffSeconds = 0

	for _, opt := range opts {
		opt(t, &cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// BaseDir is the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// WithAPIToken requires token on the admin API.
func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Server.APIToken = token
	}
}

// WithAttempts sets how many runs each task gets.
func WithAttempts(attempts int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Tasks.Attempts = attempts
	}
}

// WithStubbedBinaries puts no-op executables named after names (ffmpeg and
// ffprobe when empty) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		if len(names) == 0 {
			names = []string{cfg.Encoding.FFmpegBinary, cfg.Encoding.FFprobeBinary}
		}
		binDir := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", binDir, err)
		}
		for _, name := range names {
			stub := filepath.Join(binDir, filepath.Base(name))
			if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", strings.Join([]string{binDir, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}
