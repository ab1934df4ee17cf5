package types

import (
	"io"
	"time"
)

type File struct {
	Content io.ReadCloser
	Stat    FileStat
}

type FileStat struct {
	Size         int64
	Name         string
	ContentType  string
	LastModified time.Time
}

type NoOpReadCloser struct {
	io.Reader
}

func (NoOpReadCloser) Close() error {
	return nil
}

func (f File) GetContentType() string {
	if f.Stat.ContentType == "" {
		return "application/octet-stream"
	}
	return f.Stat.ContentType
}
