package service

import (
	"context"
	"errors"
	"path"
	"time"

	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/storage"
)

// SignedTokenVerifier checks share link tokens.
type SignedTokenVerifier interface {
	Verify(token string, now time.Time) (storage.SignedObject, error)
}

// SharedLinkService serves binaries behind signed share links issued by the local blob driver.
type SharedLinkService struct {
	verifier SignedTokenVerifier
	blobs    storage.BlobStore
	buckets  map[string]struct{}
	now      func() time.Time
}

// NewSharedLinkService constructs the service. Only objects in buckets can be opened.
func NewSharedLinkService(verifier SignedTokenVerifier, blobs storage.BlobStore, buckets ...string) *SharedLinkService {
	allowed := make(map[string]struct{}, len(buckets))
	for _, bucket := range buckets {
		allowed[bucket] = struct{}{}
	}
	return &SharedLinkService{verifier: verifier, blobs: blobs, buckets: allowed, now: time.Now}
}

// Open validates token and opens the binary it names.
func (s *SharedLinkService) Open(ctx context.Context, token string) (*BlobDownload, error) {
	if s.verifier == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "shared links are not served by this deployment")
	}
	obj, err := s.verifier.Verify(token, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "share link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid share link")
	}
	if _, ok := s.buckets[obj.Bucket]; !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid share link")
	}

	reader, info, err := s.blobs.Open(ctx, obj.Bucket, obj.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to open shared file")
	}
	return &BlobDownload{
		Reader:      reader,
		Filename:    path.Base(obj.Key),
		ContentType: info.ContentType,
		Size:        info.Size,
		ExpiresAt:   obj.ExpiresAt,
	}, nil
}
