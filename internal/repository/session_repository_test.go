package repository

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryFieldsAndDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewSessionRepository(client)

	mock.ExpectHGetAll("session:sid-1").SetVal(map[string]string{"isAdmin": "true", "adminId": "ops"})
	fields, err := repo.Fields(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "ops", fields["adminId"])

	mock.ExpectHDel("session:sid-1", "isAdmin", "adminId").SetVal(2)
	require.NoError(t, repo.Delete(context.Background(), "sid-1", "isAdmin", "adminId"))
	require.NoError(t, repo.Delete(context.Background(), "sid-1"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewSessionRepository(client)

	mock.ExpectHSet("session:sid-1", "userEmail", "a@example.com").SetVal(1)
	require.NoError(t, repo.Set(context.Background(), "sid-1", map[string]string{"userEmail": "a@example.com"}))
	require.NoError(t, repo.Set(context.Background(), "sid-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetIf(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewSessionRepository(client)

	mock.ExpectEvalSha(setIfFieldEquals.Hash(), []string{"session:sid-1"}, "isAdmin", "true", "lastAdminActivity", "1700000000000").
		SetVal(int64(1))
	ok, err := repo.SetIf(context.Background(), "sid-1", "isAdmin", "true", "lastAdminActivity", "1700000000000")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectEvalSha(setIfFieldEquals.Hash(), []string{"session:sid-2"}, "isAdmin", "true", "lastAdminActivity", "1").
		SetVal(int64(0))
	ok, err = repo.SetIf(context.Background(), "sid-2", "isAdmin", "true", "lastAdminActivity", "1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryTake(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewSessionRepository(client)

	mock.ExpectTxPipeline()
	mock.ExpectHGet("session:sid-1", "showUserMenu").SetVal("true")
	mock.ExpectHDel("session:sid-1", "showUserMenu").SetVal(1)
	mock.ExpectTxPipelineExec()

	value, ok, err := repo.Take(context.Background(), "sid-1", "showUserMenu")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)

	// redismock stops replaying a pipeline at the first command that returns Nil.
	mock.ExpectTxPipeline()
	mock.ExpectHGet("session:sid-1", "showUserMenu").RedisNil()

	_, ok, err = repo.Take(context.Background(), "sid-1", "showUserMenu")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
