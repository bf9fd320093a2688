// Package storage keeps export artifacts in a local directory, S3 or MinIO.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"lexdraft-backend/models"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Storage interface for object storage operations
type Storage interface {
	// Upload stores data under key. size may be -1 when unknown.
	Upload(ctx context.Context, key, contentType string, data io.Reader, size int64) error

	// Download retrieves an object. A missing key yields models.ErrNotFound.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type      StorageType
	LocalPath string

	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string

	MinioEndpoint  string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}
		return NewS3Storage(ctx, cfg)
	case StorageTypeMinio:
		if cfg.MinioBucket == "" {
			return nil, errors.New("MINIO_BUCKET environment variable is required for MinIO storage")
		}
		return NewMinioStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ExportKey builds a unique, time-sortable key for a piece export
func ExportKey(pieceID uuid.UUID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("exports/%s/%s.%s", pieceID, ulid.Make(), ext)
}

// cleanKey rejects keys that would escape the storage root
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: invalid storage key %q", models.ErrValidation, key)
	}
	return cleaned, nil
}

func notFound(key string) error {
	return fmt.Errorf("%w: object %s", models.ErrNotFound, key)
}
