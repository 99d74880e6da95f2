package blobstore

import (
	"context"
	"fmt"

	"mediaferry/internal/config"
)

// Open builds the final media store selected by the storage configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendFS:
		return NewFS(cfg.Storage.Root)
	case config.StorageBackendS3:
		return NewS3FromConfig(ctx, S3Config{
			Bucket:          cfg.Storage.Bucket,
			Prefix:          cfg.Storage.Prefix,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretKey,
		})
	default:
		return nil, fmt.Errorf("blobstore: unsupported backend %q", cfg.Storage.Backend)
	}
}
