package storage

import (
	"context"
	"github.com/pkg/errors"
	"paperstack/internal/config"
	"paperstack/internal/types"
	"path/filepath"
)

type (
	Type string

	// Storage is the blob store client. Keys are slash separated paths relative
	// to the store's root (bucket or directory).
	Storage interface {
		Save(ctx context.Context, location string, f types.File) error
		Get(ctx context.Context, location string) (*types.File, error)
		Delete(ctx context.Context, location string) error
		List(ctx context.Context, prefix string) ([]types.FileStat, error)
		URL(location string) string
		Ping(ctx context.Context) error
	}
)

const (
	TypeFS     Type = "File"
	TypeS3     Type = "S3"
	TypeMemory Type = "Memory"
)

var ErrNotFound = errors.New("object not found")

func (t Type) String() string {
	return string(t)
}

const memoryDir = ":memory:"

// New picks the blob store for a bucket: object storage when an endpoint is
// configured, otherwise a directory named after the bucket under cfg.Dir.
func New(cfg config.StorageConfig, bucket string) (Storage, Type, error) {
	if cfg.Endpoint != "" {
		st, err := NewObjectStorage(cfg, bucket)
		return st, TypeS3, err
	}
	if cfg.Dir == memoryDir {
		return NewMemoryStorage(), TypeMemory, nil
	}
	return NewFileStorage(filepath.Join(cfg.Dir, bucket)), TypeFS, nil
}
