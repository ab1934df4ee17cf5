package storage

import (
	"bytes"
	"context"
	"github.com/pkg/errors"
	"io"
	"paperstack/internal/types"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryStorage struct {
	lock    sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data     []byte
	modified time.Time
}

// NewMemoryStorage keeps blobs in process memory. Nothing survives a restart.
func NewMemoryStorage() Storage {
	return &memoryStorage{objects: make(map[string]memoryObject)}
}

func (m *memoryStorage) Save(ctx context.Context, location string, f types.File) error {
	data, err := io.ReadAll(readerWithContext(ctx, f.Content))
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.objects[location] = memoryObject{data: data, modified: time.Now().UTC()}
	return nil
}

func (m *memoryStorage) Get(ctx context.Context, location string) (*types.File, error) {
	m.lock.RLock()
	obj, ok := m.objects[location]
	m.lock.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrNotFound, location)
	}

	return &types.File{
		Content: types.NoOpReadCloser{Reader: bytes.NewReader(obj.data)},
		Stat: types.FileStat{
			Size:         int64(len(obj.data)),
			Name:         location,
			LastModified: obj.modified,
		},
	}, nil
}

func (m *memoryStorage) Delete(ctx context.Context, location string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.objects, location)
	return nil
}

func (m *memoryStorage) List(ctx context.Context, prefix string) ([]types.FileStat, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	result := make([]types.FileStat, 0)
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, types.FileStat{
			Size:         int64(len(obj.data)),
			Name:         key,
			LastModified: obj.modified,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (m *memoryStorage) URL(location string) string {
	return "mem://" + location
}

func (m *memoryStorage) Ping(ctx context.Context) error {
	return nil
}
