package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a blob key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists opaque evidence blobs addressed by key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
