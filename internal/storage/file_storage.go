package storage

import (
	"context"
	"github.com/pkg/errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"paperstack/internal/types"
	"strings"
)

type fileStorage struct {
	root string
}

// NewFileStorage stores blobs as files below root. It backs single node
// installs that have no object storage configured.
func NewFileStorage(root string) Storage {
	return &fileStorage{root: root}
}

func (f fileStorage) path(location string) string {
	return filepath.Join(f.root, filepath.FromSlash(strings.TrimPrefix(location, "/")))
}

// Save writes to a temporary sibling and renames it into place so readers never
// observe a partially written blob.
func (f fileStorage) Save(ctx context.Context, location string, file types.File) error {
	target := f.path(location)
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, readerWithContext(ctx, file.Content)); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

func (f fileStorage) Get(ctx context.Context, location string) (*types.File, error) {
	fi, err := os.Open(f.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, location)
	}
	if err != nil {
		return nil, err
	}

	stat, err := fi.Stat()
	if err != nil {
		_ = fi.Close()
		return nil, err
	}

	return &types.File{
		Content: fi,
		Stat: types.FileStat{
			Size:         stat.Size(),
			Name:         location,
			LastModified: stat.ModTime(),
		},
	}, nil
}

func (f fileStorage) Delete(ctx context.Context, location string) error {
	err := os.Remove(f.path(location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f fileStorage) List(ctx context.Context, prefix string) ([]types.FileStat, error) {
	result := make([]types.FileStat, 0)
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		result = append(result, types.FileStat{
			Size:         info.Size(),
			Name:         key,
			LastModified: info.ModTime(),
		})
		return nil
	})
	return result, err
}

func (f fileStorage) URL(location string) string {
	return "file://" + filepath.ToSlash(f.path(location))
}

func (f fileStorage) Ping(ctx context.Context) error {
	return os.MkdirAll(f.root, 0700)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
