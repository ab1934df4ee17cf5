package storage

import (
	"context"
	"fmt"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"paperstack/internal/config"
	"paperstack/internal/types"
)

type objectStorage struct {
	client *minio.Client
	bucket string
	region string
}

func NewObjectStorage(cfg config.StorageConfig, bucket string) (Storage, error) {
	mn, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &objectStorage{
		client: mn,
		bucket: bucket,
		region: cfg.Region,
	}, nil
}

func (s objectStorage) Save(ctx context.Context, location string, file types.File) error {
	if err := s.makeBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, location, file.Content, file.Stat.Size, minio.PutObjectOptions{
		ContentType: file.GetContentType(),
	})
	return err
}

func (s objectStorage) Get(ctx context.Context, location string) (*types.File, error) {
	r, err := s.client.GetObject(ctx, s.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	// GetObject is lazy, Stat is the first call that reaches the server
	stat, err := r.Stat()
	if err != nil {
		_ = r.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.Wrap(ErrNotFound, location)
		}
		return nil, err
	}

	return &types.File{
		Content: r,
		Stat: types.FileStat{
			Size:         stat.Size,
			Name:         stat.Key,
			ContentType:  stat.ContentType,
			LastModified: stat.LastModified,
		},
	}, nil
}

// Delete succeeds for keys that do not exist.
func (s objectStorage) Delete(ctx context.Context, location string) error {
	return s.client.RemoveObject(ctx, s.bucket, location, minio.RemoveObjectOptions{})
}

func (s objectStorage) List(ctx context.Context, prefix string) ([]types.FileStat, error) {
	result := make([]types.FileStat, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		result = append(result, types.FileStat{
			Size:         obj.Size,
			Name:         obj.Key,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}
	return result, nil
}

func (s objectStorage) URL(location string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, location)
}

func (s objectStorage) makeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
		Region: s.region,
	})
}

func (s objectStorage) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	return err
}
