package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaferry/internal/logging"
)

// CleanResult contains the outcome of a staging sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging entries older than maxAge that no task holds.
// held is keyed by staging key, which is the entry's name.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, held map[string]struct{}, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, stagingDir, held, logger, "stale", func(info os.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

// CleanOrphaned removes every staging entry that no task holds, regardless
// of age. It is only safe before the socket server accepts uploads, since a
// finished upload is staged a moment before its tasks are enqueued.
func CleanOrphaned(ctx context.Context, stagingDir string, held map[string]struct{}, logger *slog.Logger) CleanResult {
	return sweep(ctx, stagingDir, held, logger, "orphaned", func(os.FileInfo) bool { return true })
}

func sweep(ctx context.Context, stagingDir string, held map[string]struct{}, logger *slog.Logger, reason string, expired func(os.FileInfo) bool) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if _, ok := held[entry.Name()]; ok {
			continue
		}
		entryPath := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entryPath, Error: err})
			continue
		}
		if !expired(info) {
			continue
		}

		if err := os.RemoveAll(entryPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entryPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove "+reason+" staging entry", "staging_cleanup_failed",
				logging.String("path", entryPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, entryPath)
		logger.Info("removed "+reason+" staging entry",
			logging.String("path", entryPath),
			logging.Duration("age", time.Since(info.ModTime()).Truncate(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}

	return result
}

// Usage summarizes the staging directory.
type Usage struct {
	Entries int
	Bytes   int64
	Oldest  time.Time
}

// Measure walks stagingDir and totals its entries. A missing directory is
// empty.
func Measure(stagingDir string) (Usage, error) {
	var usage Usage
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return usage, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return usage, nil
		}
		return usage, err
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		usage.Entries++
		if usage.Oldest.IsZero() || info.ModTime().Before(usage.Oldest) {
			usage.Oldest = info.ModTime()
		}
		if !entry.IsDir() {
			usage.Bytes += info.Size()
			continue
		}
		size, _ := dirSize(filepath.Join(stagingDir, entry.Name()))
		usage.Bytes += size
	}
	return usage, nil
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
