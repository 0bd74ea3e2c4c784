package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the byte-storage abstraction backing the blob service.
// Both operations must be idempotent under retry: a key is derived from a
// content checksum, so identical key implies identical content.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (bool, error)
}
