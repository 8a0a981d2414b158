package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheOptions tunes a CacheService.
type CacheOptions struct {
	// Namespace is prepended to every key, separated by a colon.
	Namespace string
	TTL       time.Duration
	Disabled  bool
}

// CacheService wraps a CacheRepository with key namespacing, default expiry and hit accounting.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	logger  *zap.Logger
	opts    CacheOptions
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, logger *zap.Logger, opts CacheOptions) *CacheService {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	opts.Namespace = strings.TrimSuffix(opts.Namespace, ":")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, logger: logger, opts: opts}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.repo != nil && !s.opts.Disabled
}

// Get loads key into dest. A miss is reported as (false, nil).
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	started := time.Now()
	err := s.repo.Get(ctx, s.key(key), dest)
	hit := err == nil
	s.metrics.RecordCacheOperation(hit, time.Since(started))

	switch {
	case hit:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key. A non-positive ttl falls back to the configured default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.opts.TTL
	}
	started := time.Now()
	err := s.repo.Set(ctx, s.key(key), value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(started))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes keys.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = s.key(key)
	}
	err := s.repo.Delete(ctx, scoped...)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return err
}

func (s *CacheService) key(key string) string {
	if s.opts.Namespace == "" {
		return key
	}
	return s.opts.Namespace + ":" + key
}
