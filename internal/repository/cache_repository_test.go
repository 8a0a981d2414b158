package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

func TestCacheRepositoryRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client)
	ctx := context.Background()

	mock.ExpectSet("dash:admin:summary", []byte(`{"totalPosts":3}`), time.Minute).SetVal("OK")
	require.NoError(t, repo.Set(ctx, "dash:admin:summary", map[string]int{"totalPosts": 3}, time.Minute))

	mock.ExpectGet("dash:admin:summary").SetVal(`{"totalPosts":3}`)
	var out map[string]int
	require.NoError(t, repo.Get(ctx, "dash:admin:summary", &out))
	assert.Equal(t, 3, out["totalPosts"])

	mock.ExpectGet("dash:admin:summary").RedisNil()
	require.ErrorIs(t, repo.Get(ctx, "dash:admin:summary", &out), appErrors.ErrCacheMiss)

	mock.ExpectDel("dash:admin:summary").SetVal(1)
	require.NoError(t, repo.Delete(ctx, "dash:admin:summary"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryDisabled(t *testing.T) {
	repo := NewCacheRepository(nil)
	var out map[string]int
	require.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(context.Background(), "k", 1, time.Second))
	require.NoError(t, repo.Delete(context.Background(), "k"))
}

func TestCacheRepositoryCorruptPayloadIsMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client)

	mock.ExpectGet("dash:admin:summary").SetVal(`{"totalPosts":`)
	var out map[string]int
	require.ErrorIs(t, repo.Get(context.Background(), "dash:admin:summary", &out), appErrors.ErrCacheMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}
