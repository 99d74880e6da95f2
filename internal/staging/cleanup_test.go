package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaferry/internal/logging"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldUnheldEntries(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.png", 2*time.Hour)
	heldOld := writeAged(t, dir, "held.mov", 2*time.Hour)
	recent := writeAged(t, dir, "recent.jpg", time.Minute)

	held := map[string]struct{}{"held.mov": {}}
	result := CleanStale(context.Background(), dir, time.Hour, held, nil)

	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v", old, result.Removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old entry should be gone")
	}
	for _, keep := range []string{heldOld, recent} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
}

func TestCleanStaleRemovesScratchDirectories(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "video-7-123")
	if err := os.MkdirAll(filepath.Join(scratch, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stamp := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(scratch, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
	if len(result.Removed) != 1 {
		t.Fatalf("expected scratch dir removed, got %v", result.Removed)
	}
}

func TestCleanOrphanedIgnoresAge(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "fresh-orphan.png", 0)
	kept := writeAged(t, dir, "fresh-held.png", 0)

	result := CleanOrphaned(context.Background(), dir, map[string]struct{}{"fresh-held.png": {}}, logging.NewNop())
	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed, got %v", result.Removed)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("held entry should remain: %v", err)
	}
}

func TestCleanStopsOnCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "a.png", 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := CleanStale(ctx, dir, time.Hour, nil, nil)
	if len(result.Removed) != 0 {
		t.Fatalf("expected nothing removed after cancel, got %v", result.Removed)
	}
}

func TestMeasure(t *testing.T) {
	usage, err := Measure("/nonexistent/path/12345")
	if err != nil || usage.Entries != 0 {
		t.Fatalf("missing dir should be empty, got %+v %v", usage, err)
	}

	dir := t.TempDir()
	writeAged(t, dir, "a.png", time.Hour)
	writeAged(t, dir, "b.png", time.Minute)
	sub := filepath.Join(dir, "scratch")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "c"), []byte("123"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	usage, err = Measure(dir)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if usage.Entries != 3 {
		t.Fatalf("expected 3 entries, got %d", usage.Entries)
	}
	if usage.Bytes != 13 {
		t.Fatalf("expected 13 bytes, got %d", usage.Bytes)
	}
	if time.Since(usage.Oldest) < 59*time.Minute {
		t.Fatalf("oldest should be about an hour old, got %v", usage.Oldest)
	}
}
