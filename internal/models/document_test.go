package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareGrantsScanValue(t *testing.T) {
	var grants ShareGrants
	require.NoError(t, grants.Scan(nil))
	assert.Empty(t, grants)

	raw, err := ShareGrants(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), raw)

	require.NoError(t, grants.Scan([]byte(`[{"url":"u","path":"p","expiresAt":"2026-01-02T00:00:00Z","issuedAt":"2026-01-01T00:00:00Z"}]`)))
	require.Len(t, grants, 1)
	assert.Equal(t, "p", grants[0].Path)

	require.Error(t, grants.Scan(42))
}

func TestShareGrantsLatestActiveExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	grants := ShareGrants{
		{Path: "a.pdf", ExpiresAt: now.Add(-time.Hour)},
		{Path: "a.pdf", ExpiresAt: now.Add(24 * time.Hour)},
		{Path: "a.pdf", ExpiresAt: now.Add(168 * time.Hour)},
		{Path: "b.pdf", ExpiresAt: now.Add(500 * time.Hour)},
	}

	latest, ok := grants.LatestActiveExpiry("a.pdf", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(168*time.Hour), latest)

	_, ok = grants.LatestActiveExpiry("c.pdf", now)
	assert.False(t, ok)
}

func TestSessionHelpers(t *testing.T) {
	id := "admin-1"
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := &Session{IsAdmin: true, AdminID: &id, LastAdminActivity: &at}
	assert.True(t, s.HasAdminIdentity())

	idle, ok := s.IdleFor(at.Add(31 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 31*time.Minute, idle)

	empty := ""
	assert.False(t, (&Session{IsAdmin: true, AdminID: &empty}).HasAdminIdentity())
	assert.False(t, (&Session{IsAdmin: false, AdminID: &id}).HasAdminIdentity())
	_, ok = (&Session{}).IdleFor(at)
	assert.False(t, ok)
}

func TestAuthModeValid(t *testing.T) {
	assert.True(t, AuthModeUserSignup.Valid())
	assert.False(t, AuthMode("guest").Valid())
}
