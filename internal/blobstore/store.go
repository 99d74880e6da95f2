package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// maxNameAttempts bounds the rename-on-conflict search.
const maxNameAttempts = 1000

// Store persists media bytes under slash-separated keys.
type Store interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	// NewName returns key if it is free, otherwise the first free
	// "<base>-N<ext>" sibling.
	NewName(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FileUploader is implemented by stores that can ingest a local file without
// loading it into memory.
type FileUploader interface {
	UploadFile(ctx context.Context, key, localPath string) error
}

// CleanKey normalizes a key and rejects ones escaping the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", errors.New("blob key is empty")
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("blob key %q is invalid", key)
	}
	return cleaned, nil
}

func uniqueName(ctx context.Context, key string, exists func(context.Context, string) (bool, error)) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	taken, err := exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !taken {
		return key, nil
	}
	ext := path.Ext(key)
	base := strings.TrimSuffix(key, ext)
	for i := 1; i <= maxNameAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %q after %d attempts", key, maxNameAttempts)
}
