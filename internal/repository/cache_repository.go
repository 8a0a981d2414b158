package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

// CacheRepository keeps JSON snapshots of read models in Redis. A nil
// client turns every read into a miss and every write into a no-op.
type CacheRepository struct {
	client redis.Cmdable
}

// NewCacheRepository constructs a cache repository over client.
func NewCacheRepository(client redis.Cmdable) *CacheRepository {
	return &CacheRepository{client: client}
}

// Get decodes the value at key into dest, or returns ErrCacheMiss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("cache get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A payload written by an older build is treated as absent.
		return fmt.Errorf("cache decode %q: %w", key, errors.Join(appErrors.ErrCacheMiss, err))
	}
	return nil
}

// Set encodes value and stores it for ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %q: %w", key, err)
	}
	return wrapCacheErr("set", key, r.client.Set(ctx, key, raw, ttl).Err())
}

// Delete drops keys; absent keys are not an error.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	return wrapCacheErr("del", fmt.Sprint(keys), r.client.Del(ctx, keys...).Err())
}

// Ping reports whether Redis answers.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

func wrapCacheErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cache %s %s: %w", op, key, err)
}
