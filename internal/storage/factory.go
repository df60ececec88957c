package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/shareledger/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - ctx: used when the bucket has to be checked or created.
//   - cfg: storage configuration including type, endpoint, credentials, and bucket.
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	if cfg.IsLocal() {
		return NewLocalStorage(cfg.Root)
	}

	storeType := StorageType(strings.ToLower(cfg.Type))
	switch storeType {
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
	case "auto":
		storeType = detectStorageType(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	s3Storage, err := NewS3Storage(&S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	if err := s3Storage.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3Storage, nil
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
