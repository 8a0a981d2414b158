package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/pkg/jobs"
	"github.com/noah-isme/taxdesk-api/pkg/storage"
)

// BlobCleanupJobType identifies queued binary removals.
const BlobCleanupJobType = "blob.cleanup"

// BlobCleanupPayload names the binaries a cleanup job removes.
type BlobCleanupPayload struct {
	Bucket     string
	Keys       []string
	DocumentID string
}

type documentLookup interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

// BlobCleanupService removes superseded binaries from the blob store.
type BlobCleanupService struct {
	blobs     storage.BlobStore
	documents documentLookup
	scheduler cleanupScheduler
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewBlobCleanupService constructs the cleanup job handler. With documents set, keys that
// gained a share link after the job was scheduled are postponed instead of removed.
func NewBlobCleanupService(blobs storage.BlobStore, documents documentLookup, metrics *MetricsService, logger *zap.Logger) *BlobCleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobCleanupService{blobs: blobs, documents: documents, metrics: metrics, logger: logger, now: time.Now}
}

// UseScheduler sets the queue postponed keys are re-enqueued on.
func (s *BlobCleanupService) UseScheduler(scheduler cleanupScheduler) {
	s.scheduler = scheduler
}

// Handle implements jobs.Handler. Errors are retried by the queue.
func (s *BlobCleanupService) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != BlobCleanupJobType {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	payload, ok := job.Payload.(BlobCleanupPayload)
	if !ok {
		s.logger.Error("dropping cleanup job with invalid payload", zap.String("job_id", job.ID))
		return nil
	}
	keys, err := s.releasable(ctx, payload)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	err = s.blobs.Remove(ctx, payload.Bucket, keys...)
	s.metrics.RecordBlobOperation(payload.Bucket, "cleanup", err)
	if err != nil {
		return fmt.Errorf("remove superseded binaries: %w", err)
	}
	s.logger.Info("superseded binaries removed", zap.String("bucket", payload.Bucket), zap.Strings("keys", keys), zap.Int("attempt", job.Attempt))
	return nil
}

// releasable re-reads the owning document and returns the keys no live share link points at.
// The rest are re-enqueued for when their latest link expires.
func (s *BlobCleanupService) releasable(ctx context.Context, payload BlobCleanupPayload) ([]string, error) {
	if payload.DocumentID == "" || s.documents == nil || len(payload.Keys) == 0 {
		return payload.Keys, nil
	}
	doc, err := s.documents.GetByID(ctx, payload.DocumentID)
	if errors.Is(err, sql.ErrNoRows) {
		return payload.Keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload document %s: %w", payload.DocumentID, err)
	}

	now := s.now()
	release := make([]string, 0, len(payload.Keys))
	var held []string
	var until time.Time
	for _, key := range payload.Keys {
		if key == doc.Path {
			continue
		}
		if expiry, ok := doc.SharedWith.LatestActiveExpiry(key, now); ok {
			held = append(held, key)
			if expiry.After(until) {
				until = expiry
			}
			continue
		}
		release = append(release, key)
	}
	if len(held) == 0 {
		return release, nil
	}
	if s.scheduler == nil {
		s.logger.Warn("shared binaries kept without a cleanup queue", zap.Strings("keys", held))
		return release, nil
	}
	next := jobs.Job{
		ID:      uuid.NewString(),
		Type:    BlobCleanupJobType,
		Payload: BlobCleanupPayload{Bucket: payload.Bucket, Keys: held, DocumentID: payload.DocumentID},
	}
	if err := s.scheduler.EnqueueAfter(next, until.Sub(now)); err != nil {
		return nil, fmt.Errorf("postpone shared binaries: %w", err)
	}
	s.logger.Info("cleanup postponed for shared binaries", zap.Strings("keys", held), zap.Time("until", until))
	return release, nil
}
