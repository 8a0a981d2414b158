package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/events"
	"github.com/noah-isme/taxdesk-api/pkg/storage"
)

type blogStore interface {
	Create(ctx context.Context, post *models.BlogPost) error
	GetByID(ctx context.Context, id string) (*models.BlogPost, error)
	List(ctx context.Context) ([]models.BlogPost, error)
	Delete(ctx context.Context, id string) error
}

// BlogServiceConfig holds the image bucket and limits.
type BlogServiceConfig struct {
	Bucket       string
	MaxImageSize int64
	ImageBaseURL string
}

// BlogService publishes and removes blog posts and their cover images.
type BlogService struct {
	repo    blogStore
	blobs   storage.BlobStore
	events  eventEmitter
	metrics *MetricsService
	logger  *zap.Logger
	cfg     BlogServiceConfig
	now     func() time.Time
}

// NewBlogService constructs the service.
func NewBlogService(repo blogStore, blobs storage.BlobStore, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger, cfg BlogServiceConfig) *BlogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "blog-images"
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 5 * 1024 * 1024
	}
	cfg.ImageBaseURL = strings.TrimRight(cfg.ImageBaseURL, "/")
	return &BlogService{
		repo:    repo,
		blobs:   blobs,
		events:  newEventEmitter(publisher, metrics, logger),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Publish stores the optional image and inserts the post.
func (s *BlogService) Publish(ctx context.Context, req dto.PublishBlogPostRequest, image *FileUpload) (*models.BlogPost, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content is required")
	}
	if image != nil && image.Size > s.cfg.MaxImageSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("image exceeds %d bytes limit", s.cfg.MaxImageSize))
	}

	now := s.now().UTC()
	post := &models.BlogPost{
		Title:     strings.TrimSpace(req.Title),
		ShortInfo: strings.TrimSpace(req.ShortInfo),
		Author:    strings.TrimSpace(req.Author),
		Content:   req.Content,
		Date:      now,
	}
	if post.Author == "" {
		post.Author = models.BlogAuthorDefault
	}

	if image != nil && image.Content != nil && image.Size > 0 {
		key, err := s.storeImage(ctx, *image, now)
		if err != nil {
			return nil, err
		}
		post.ImageRef = &key
	}

	if err := s.repo.Create(ctx, post); err != nil {
		if post.ImageRef != nil {
			s.removeImageQuietly(ctx, *post.ImageRef)
		}
		return nil, appErrors.Internal(err, "failed to save blog post")
	}

	s.events.emit(ctx, events.TypeBlogPublished, post.ID, map[string]interface{}{"title": post.Title, "author": post.Author})
	s.decorate(post)
	return post, nil
}

// List returns every post, newest first.
func (s *BlogService) List(ctx context.Context) ([]models.BlogPost, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list blog posts")
	}
	for i := range posts {
		s.decorate(&posts[i])
	}
	return posts, nil
}

// Get returns one post.
func (s *BlogService) Get(ctx context.Context, id string) (*models.BlogPost, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return nil, appErrors.Internal(err, "failed to load blog post")
	}
	s.decorate(post)
	return post, nil
}

// Delete removes the cover image first and the record only when that succeeded.
func (s *BlogService) Delete(ctx context.Context, id string) error {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return appErrors.Internal(err, "failed to load blog post")
	}

	if post.ImageRef != nil && *post.ImageRef != "" {
		err := s.blobs.Remove(ctx, s.cfg.Bucket, *post.ImageRef)
		s.metrics.RecordBlobOperation(s.cfg.Bucket, "remove", err)
		if err != nil {
			return appErrors.Internal(err, "failed to delete blog image")
		}
	}

	if err := s.repo.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blog post not found")
		}
		return appErrors.Internal(err, "failed to delete blog post")
	}

	s.events.emit(ctx, events.TypeBlogDeleted, post.ID, nil)
	return nil
}

// OpenImage opens a stored cover image by its key.
func (s *BlogService) OpenImage(ctx context.Context, name string) (*BlobDownload, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "image not found")
	}
	reader, info, err := s.blobs.Open(ctx, s.cfg.Bucket, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return nil, appErrors.Internal(err, "failed to open image")
	}
	return &BlobDownload{Reader: reader, Filename: name, ContentType: info.ContentType, Size: info.Size}, nil
}

func (s *BlogService) storeImage(ctx context.Context, image FileUpload, now time.Time) (string, error) {
	mimeType, err := detectMime(image)
	if err != nil {
		return "", err
	}
	key := withExtension(fmt.Sprintf("%d-%s", now.UnixMilli(), randomHex(6)), fileExtension(image.Filename))
	if _, err := image.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to reset upload stream")
	}
	err = s.blobs.Upload(ctx, s.cfg.Bucket, key, image.Content, image.Size, mimeType, true)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "upload", err)
	if err != nil {
		return "", appErrors.Internal(err, "failed to upload image")
	}
	return key, nil
}

func (s *BlogService) removeImageQuietly(ctx context.Context, key string) {
	err := s.blobs.Remove(ctx, s.cfg.Bucket, key)
	s.metrics.RecordBlobOperation(s.cfg.Bucket, "remove", err)
	if err != nil {
		s.logger.Warn("failed to remove orphaned blog image", zap.String("key", key), zap.Error(err))
	}
}

func (s *BlogService) decorate(post *models.BlogPost) {
	decorateImageURL(s.cfg.ImageBaseURL, post)
}

func decorateImageURL(base string, post *models.BlogPost) {
	if post == nil || post.ImageRef == nil || *post.ImageRef == "" || base == "" {
		return
	}
	post.ImageURL = base + "/" + *post.ImageRef
}
