package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage persists objects on disk, one directory per bucket.
type LocalStorage struct {
	baseDir     string
	signer      *SignedURLSigner
	downloadURL string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// downloadURL is the public prefix that signed tokens are appended to.
func NewLocalStorage(baseDir string, signer *SignedURLSigner, downloadURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{
		baseDir:     baseDir,
		signer:      signer,
		downloadURL: strings.TrimRight(downloadURL, "/"),
	}, nil
}

// Upload writes r to bucket/key. Without overwrite an existing key yields ErrObjectExists.
func (s *LocalStorage) Upload(ctx context.Context, bucket, key string, r io.Reader, _ int64, _ string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare object directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrObjectExists
		}
		return fmt.Errorf("create object file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write object stream: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close object file: %w", err)
	}
	return nil
}

// Remove deletes the given keys. Missing keys are ignored.
func (s *LocalStorage) Remove(ctx context.Context, bucket string, keys ...string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := s.resolve(bucket, key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete object file: %w", err)
		}
	}
	return nil
}

// Open returns a read-only handle for the stored object.
func (s *LocalStorage) Open(_ context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := s.resolve(bucket, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open object file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat object file: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return file, ObjectInfo{Key: key, Size: stat.Size(), ContentType: contentType}, nil
}

// SignedURL returns a download link served by the API's shared endpoint.
func (s *LocalStorage) SignedURL(_ context.Context, bucket, key string, expiresAt time.Time) (string, error) {
	if s.signer == nil {
		return "", fmt.Errorf("signed urls not configured")
	}
	token, err := s.signer.Sign(bucket, key, expiresAt)
	if err != nil {
		return "", err
	}
	return s.downloadURL + "/" + token, nil
}

func (s *LocalStorage) resolve(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	if strings.ContainsAny(bucket, `/\`) || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return filepath.Join(s.baseDir, bucket, clean), nil
}
