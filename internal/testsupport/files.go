package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediaferry/internal/config"
)

// StageFile writes size bytes of deterministic content under the staging
// directory and returns the absolute path plus the bytes written.
func StageFile(t testing.TB, cfg *config.Config, name string, size int) (string, []byte) {
	t.Helper()
	path := filepath.Join(cfg.Paths.StagingDir, filepath.FromSlash(name))
	return path, WriteFile(t, path, size)
}

// WriteFile creates path and its parents and fills it with size bytes. The
// content cycles through a prime-length alphabet so chunk boundaries never
// line up with the pattern. Sizes below one write a single byte.
func WriteFile(t testing.TB, path string, size int) []byte {
	t.Helper()
	if size < 1 {
		size = 1
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%23)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
