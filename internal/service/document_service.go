package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/events"
	"github.com/noah-isme/taxdesk-api/pkg/jobs"
	"github.com/noah-isme/taxdesk-api/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	ReplaceVersion(ctx context.Context, doc *models.Document, expectedVersion int) (bool, error)
	AppendShare(ctx context.Context, id string, grant models.ShareGrant) error
	Delete(ctx context.Context, id string) error
}

// supersededCleanupGrace lets a Share that read the previous version record its grant
// before the cleanup job re-reads the document.
const supersededCleanupGrace = time.Minute

type cleanupScheduler interface {
	EnqueueAfter(job jobs.Job, delay time.Duration) error
}

// DocumentServiceConfig holds bucket and validation settings.
type DocumentServiceConfig struct {
	Bucket      string
	Categories  []string
	MaxFileSize int64
}

// DocumentServiceParams groups constructor dependencies.
type DocumentServiceParams struct {
	Repo      documentStore
	Blobs     storage.BlobStore
	Cleanup   cleanupScheduler
	Validator *validator.Validate
	Publisher events.Publisher
	Metrics   *MetricsService
	Logger    *zap.Logger
	Config    DocumentServiceConfig
}

// DocumentService manages the documents registry and its binaries.
type DocumentService struct {
	repo       documentStore
	blobs      storage.BlobStore
	cleanup    cleanupScheduler
	validator  *validator.Validate
	events     eventEmitter
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        DocumentServiceConfig
	categories map[string]struct{}
	now        func() time.Time
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(params DocumentServiceParams) *DocumentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	cfg := params.Config
	if cfg.Bucket == "" {
		cfg.Bucket = "tax-documents"
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = []string{"us-tax-forms", "india-tax-forms", "client-resources", "tax-treaties"}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 25 * 1024 * 1024
	}
	categories := make(map[string]struct{}, len(cfg.Categories))
	for _, category := range cfg.Categories {
		categories[category] = struct{}{}
	}
	return &DocumentService{
		repo:       params.Repo,
		blobs:      params.Blobs,
		cleanup:    params.Cleanup,
		validator:  validate,
		events:     newEventEmitter(params.Publisher, params.Metrics, logger),
		metrics:    params.Metrics,
		logger:     logger,
		cfg:        cfg,
		categories: categories,
		now:        time.Now,
	}
}

// Categories returns the configured document categories in display order.
func (s *DocumentService) Categories() []string {
	out := make([]string, len(s.cfg.Categories))
	copy(out, s.cfg.Categories)
	return out
}

// List returns the documents of a category, newest first, filtered by name or type.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentListQuery) ([]models.Document, error) {
	category := strings.TrimSpace(query.Category)
	if category == "" {
		category = s.cfg.Categories[0]
	}
	if err := s.ensureCategory(category); err != nil {
		return nil, err
	}
	docs, err := s.repo.List(ctx, models.DocumentFilter{Category: category, Query: query.Query})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list documents")
	}
	return docs, nil
}

// Get returns one document.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	return doc, nil
}

// Upload stores files one by one under category. The first failure stops the batch; the
// result then lists the documents stored so far and names the failing file.
func (s *DocumentService) Upload(ctx context.Context, category string, files []FileUpload) (*dto.DocumentUploadResult, error) {
	category = strings.TrimSpace(category)
	if err := s.ensureCategory(category); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}

	result := &dto.DocumentUploadResult{Documents: make([]models.Document, 0, len(files))}
	for i, file := range files {
		doc, err := s.uploadOne(ctx, category, file)
		if err != nil {
			index := i
			result.FailedIndex = &index
			result.FailedName = file.Filename
			s.logger.Warn("document upload stopped",
				zap.String("category", category),
				zap.Int("failed_index", i),
				zap.String("file", file.Filename),
				zap.Int("stored", len(result.Documents)),
				zap.Error(err),
			)
			return result, err
		}
		result.Documents = append(result.Documents, *doc)
		s.events.emit(ctx, events.TypeDocumentUploaded, doc.ID, map[string]interface{}{
			"category": doc.Category,
			"name":     doc.Name,
			"path":     doc.Path,
		})
	}
	return result, nil
}

func (s *DocumentService) uploadOne(ctx context.Context, category string, file FileUpload) (*models.Document, error) {
	if err := s.validateFile(file); err != nil {
		return nil, err
	}
	mimeType, err := detectMime(file)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s", category, withExtension(randomHex(16), fileExtension(file.Filename)))
	if err := s.put(ctx, key, file, mimeType, false); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:         uuid.NewString(),
		Name:       file.Filename,
		Path:       key,
		Category:   category,
		Size:       file.Size,
		Type:       mimeType,
		Version:    1,
		UploadedAt: s.now().UTC(),
		SharedWith: models.ShareGrants{},
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		s.removeQuietly(ctx, key)
		return nil, appErrors.Internal(err, "failed to save document record")
	}
	return doc, nil
}

// NewVersion replaces the binary of a document. The update only applies when nobody bumped the
// version since it was read; the superseded binary is removed in the background once no unexpired
// share link points at it.
func (s *DocumentService) NewVersion(ctx context.Context, id string, file FileUpload) (*models.Document, error) {
	if err := s.validateFile(file); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mimeType, err := detectMime(file)
	if err != nil {
		return nil, err
	}

	nextVersion := current.Version + 1
	base := fmt.Sprintf("%s_v%d", versionBase(current.Path), nextVersion)
	key := fmt.Sprintf("%s/%s", current.Category, withExtension(base, fileExtension(file.Filename)))

	if err := s.put(ctx, key, file, mimeType, false); err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrConflict.Code {
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "")
		}
		return nil, err
	}

	updated := *current
	updated.Path = key
	updated.Size = file.Size
	updated.Type = mimeType
	updated.Version = nextVersion
	updated.UploadedAt = s.now().UTC()

	applied, err := s.repo.ReplaceVersion(ctx, &updated, current.Version)
	if err != nil {
		s.removeQuietly(ctx, key)
		return nil, appErrors.Internal(err, "failed to update document record")
	}
	if !applied {
		s.removeQuietly(ctx, key)
		return nil, appErrors.Clone(appErrors.ErrVersionConflict, "")
	}

	if current.Path != key {
		s.scheduleCleanup(current, s.now())
	}
	s.events.emit(ctx, events.TypeDocumentVersioned, updated.ID, map[string]interface{}{
		"version":      updated.Version,
		"path":         updated.Path,
		"previousPath": current.Path,
	})
	return &updated, nil
}

// Share issues a signed link for the current binary valid for exactly expiryHours and records it.
func (s *DocumentService) Share(ctx context.Context, id string, req dto.ShareDocumentRequest) (*dto.DocumentLinkResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, fmt.Sprintf("expiryHours must be %d or %d", models.ShareExpiryDay, models.ShareExpiryWeek))
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(time.Duration(req.ExpiryHours) * time.Hour)
	url, err := s.blobs.SignedURL(ctx, s.cfg.Bucket, doc.Path, expiresAt)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "sign", err)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create share link")
	}

	grant := models.ShareGrant{URL: url, ExpiresAt: expiresAt, Path: doc.Path, IssuedAt: issuedAt}
	if err := s.repo.AppendShare(ctx, doc.ID, grant); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to record share link")
	}

	s.events.emit(ctx, events.TypeDocumentShared, doc.ID, map[string]interface{}{
		"expiresAt": expiresAt,
		"path":      doc.Path,
	})
	return &dto.DocumentLinkResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// Preview returns a short-lived link that is not recorded on the document.
func (s *DocumentService) Preview(ctx context.Context, id string) (*dto.DocumentLinkResponse, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().UTC().Add(models.PreviewExpiry)
	url, err := s.blobs.SignedURL(ctx, s.cfg.Bucket, doc.Path, expiresAt)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "sign", err)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create preview link")
	}
	return &dto.DocumentLinkResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// Delete removes the binaries first, then the record. A storage failure leaves the record untouched.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	keys := documentKeys(doc)
	err = s.blobs.Remove(ctx, s.cfg.Bucket, keys...)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "remove", err)
	if err != nil {
		return appErrors.Internal(err, "failed to delete file from storage")
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		s.logger.Error("document binary removed but record delete failed", zap.String("document_id", doc.ID), zap.Error(err))
		return appErrors.Internal(err, "failed to delete document record")
	}

	s.events.emit(ctx, events.TypeDocumentDeleted, doc.ID, map[string]interface{}{"paths": keys})
	return nil
}

func (s *DocumentService) ensureCategory(category string) error {
	if category == "" {
		return appErrors.Clone(appErrors.ErrValidation, "category is required")
	}
	if _, ok := s.categories[category]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", category))
	}
	return nil
}

func (s *DocumentService) validateFile(file FileUpload) error {
	if file.Content == nil || file.Size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if strings.TrimSpace(file.Filename) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}
	if file.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	return nil
}

func (s *DocumentService) put(ctx context.Context, key string, file FileUpload, mimeType string, overwrite bool) error {
	if _, err := file.Content.Seek(0, io.SeekStart); err != nil {
		return appErrors.Internal(err, "failed to reset upload stream")
	}
	err := s.blobs.Upload(ctx, s.cfg.Bucket, key, file.Content, file.Size, mimeType, overwrite)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "upload", err)
	if err != nil {
		if errors.Is(err, storage.ErrObjectExists) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a file with this name already exists")
		}
		return appErrors.Internal(err, "failed to upload file")
	}
	return nil
}

func (s *DocumentService) removeQuietly(ctx context.Context, key string) {
	err := s.blobs.Remove(ctx, s.cfg.Bucket, key)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "remove", err)
	if err != nil {
		s.logger.Warn("failed to remove orphaned document binary", zap.String("path", key), zap.Error(err))
	}
}

func (s *DocumentService) scheduleCleanup(previous *models.Document, now time.Time) {
	if s.cleanup == nil {
		s.logger.Warn("no cleanup queue configured; superseded binary kept", zap.String("path", previous.Path))
		return
	}
	delay := supersededCleanupGrace
	if until, ok := previous.SharedWith.LatestActiveExpiry(previous.Path, now); ok && until.Sub(now) > delay {
		delay = until.Sub(now)
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    BlobCleanupJobType,
		Payload: BlobCleanupPayload{Bucket: s.cfg.Bucket, Keys: []string{previous.Path}, DocumentID: previous.ID},
	}
	if err := s.cleanup.EnqueueAfter(job, delay); err != nil {
		s.logger.Warn("failed to schedule superseded binary cleanup", zap.String("path", previous.Path), zap.Error(err))
	}
}

// documentKeys lists the current binary plus every distinct binary a share link was issued for.
func documentKeys(doc *models.Document) []string {
	seen := map[string]struct{}{doc.Path: {}}
	keys := []string{doc.Path}
	for _, grant := range doc.SharedWith {
		if grant.Path == "" {
			continue
		}
		if _, ok := seen[grant.Path]; ok {
			continue
		}
		seen[grant.Path] = struct{}{}
		keys = append(keys, grant.Path)
	}
	return keys
}
