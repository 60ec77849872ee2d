package storage

import (
	"context"
	"fmt"

	arm "github.com/lokhman/silex-arm"
	"github.com/lokhman/silex-arm/config"
)

var (
	_ arm.Storage = (*Filesystem)(nil)
	_ arm.Storage = (*Memory)(nil)
	_ arm.Storage = (*S3)(nil)
)

// NewFromConfig creates a storage backend from configuration.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (arm.Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemory(), nil
	case "filesystem":
		return NewFilesystem(cfg.Root)
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
			Region: cfg.S3Region,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
