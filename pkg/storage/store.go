package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound is returned when a bucket/key pair does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectExists is returned by non-overwriting uploads that hit an existing key.
	ErrObjectExists = errors.New("storage: object already exists")
)

// ObjectInfo describes an object opened for reading.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// BlobStore abstracts the bucketed blob backends used for documents and blog images.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string, overwrite bool) error
	Remove(ctx context.Context, bucket string, keys ...string) error
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	SignedURL(ctx context.Context, bucket, key string, expiresAt time.Time) (string, error)
}
