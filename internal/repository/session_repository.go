package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// setIfFieldEquals writes ARGV[3]=ARGV[4] only while field ARGV[1] holds ARGV[2].
var setIfFieldEquals = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
	redis.call('HSET', KEYS[1], ARGV[3], ARGV[4])
	return 1
end
return 0
`)

// SessionRepository stores session key/value pairs in one Redis hash per session.
// No TTL is applied; expiry is decided by the admin guard.
type SessionRepository struct {
	client redis.Cmdable
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(client redis.Cmdable) *SessionRepository {
	return &SessionRepository{client: client}
}

// Fields returns every key stored for sid; an unknown session yields an empty map.
func (r *SessionRepository) Fields(ctx context.Context, sid string) (map[string]string, error) {
	values, err := r.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return values, nil
}

// Set writes the given fields.
func (r *SessionRepository) Set(ctx context.Context, sid string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := r.client.HSet(ctx, sessionKey(sid), values...).Err(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// SetIf writes field=value only while guardField equals guardValue. It reports whether the write happened.
func (r *SessionRepository) SetIf(ctx context.Context, sid, guardField, guardValue, field, value string) (bool, error) {
	n, err := setIfFieldEquals.Run(ctx, r.client, []string{sessionKey(sid)}, guardField, guardValue, field, value).Int()
	if err != nil {
		return false, fmt.Errorf("conditional session write: %w", err)
	}
	return n == 1, nil
}

// Delete removes the given fields.
func (r *SessionRepository) Delete(ctx context.Context, sid string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, sessionKey(sid), fields...).Err(); err != nil {
		return fmt.Errorf("clear session keys: %w", err)
	}
	return nil
}

// Take reads and deletes one field atomically.
func (r *SessionRepository) Take(ctx context.Context, sid, field string) (string, bool, error) {
	key := sessionKey(sid)
	var get *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, key, field)
		pipe.HDel(ctx, key, field)
		return nil
	})
	if err != nil && err != redis.Nil {
		return "", false, fmt.Errorf("take session key: %w", err)
	}
	value, err := get.Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take session key: %w", err)
	}
	return value, true, nil
}

func sessionKey(sid string) string {
	return sessionKeyPrefix + sid
}
