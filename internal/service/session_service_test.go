package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
	err      error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]map[string]string)}
}

func (m *memSessionStore) Fields(_ context.Context, sid string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.sessions[sid]))
	for k, v := range m.sessions[sid] {
		out[k] = v
	}
	return out, nil
}

func (m *memSessionStore) Set(_ context.Context, sid string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.sessions[sid] == nil {
		m.sessions[sid] = make(map[string]string)
	}
	for k, v := range fields {
		m.sessions[sid][k] = v
	}
	return nil
}

func (m *memSessionStore) SetIf(_ context.Context, sid, guardField, guardValue, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.sessions[sid][guardField] != guardValue {
		return false, nil
	}
	m.sessions[sid][field] = value
	return true, nil
}

func (m *memSessionStore) Delete(_ context.Context, sid string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, f := range fields {
		delete(m.sessions[sid], f)
	}
	return nil
}

func (m *memSessionStore) Take(_ context.Context, sid, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.sessions[sid][field]
	delete(m.sessions[sid], field)
	return v, ok, nil
}

func (m *memSessionStore) field(sid, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sessions[sid][key]
	return v, ok
}

func (m *memSessionStore) put(sid, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[sid] == nil {
		m.sessions[sid] = make(map[string]string)
	}
	m.sessions[sid][key] = value
}

func newTestSessionService(store *memSessionStore, now time.Time) *SessionService {
	svc := NewSessionService(store, SessionConfig{Secret: "secret", TokenExpiry: time.Hour, Issuer: "taxdesk-test"})
	svc.now = func() time.Time { return now }
	return svc
}

func TestSessionServiceLoadEmpty(t *testing.T) {
	svc := newTestSessionService(newMemSessionStore(), time.Now())

	session, err := svc.Load(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, "unknown", session.ID)
	assert.False(t, session.IsAdmin)
	assert.Nil(t, session.AdminID)
	assert.Nil(t, session.LastAdminActivity)
	assert.False(t, session.HasAdminIdentity())
}

func TestSessionServiceAdminLifecycle(t *testing.T) {
	store := newMemSessionStore()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestSessionService(store, now)
	ctx := context.Background()

	store.put("sid", models.SessionKeyLastAdminActivity, "1")
	require.NoError(t, svc.StartAdmin(ctx, "sid", "admin-1"))
	_, stale := store.field("sid", models.SessionKeyLastAdminActivity)
	assert.False(t, stale, "a fresh login must not inherit old activity")

	require.NoError(t, svc.RecordAdminVerified(ctx, "sid", "admin", now))
	session, err := svc.Load(ctx, "sid")
	require.NoError(t, err)
	require.True(t, session.HasAdminIdentity())
	assert.Equal(t, "admin-1", *session.AdminID)
	assert.Equal(t, "admin", *session.AdminRole)
	require.NotNil(t, session.LastAdminActivity)
	assert.True(t, now.Equal(*session.LastAdminActivity))

	later := now.Add(5 * time.Minute)
	ok, err := svc.Touch(ctx, "sid", later)
	require.NoError(t, err)
	assert.True(t, ok)
	raw, _ := store.field("sid", models.SessionKeyLastAdminActivity)
	assert.Equal(t, strconv.FormatInt(later.UnixMilli(), 10), raw)

	require.NoError(t, svc.ClearAdmin(ctx, "sid"))
	for _, key := range models.AdminSessionKeys {
		_, present := store.field("sid", key)
		assert.False(t, present, key)
	}

	ok, err = svc.Touch(ctx, "sid", later)
	require.NoError(t, err)
	assert.False(t, ok)
	_, present := store.field("sid", models.SessionKeyLastAdminActivity)
	assert.False(t, present)
}

func TestSessionServiceUserMenuIsOneShot(t *testing.T) {
	store := newMemSessionStore()
	svc := newTestSessionService(store, time.Now())
	ctx := context.Background()

	require.NoError(t, svc.StartUser(ctx, "sid", "client@example.com"))
	session, err := svc.Load(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, session.ShowUserMenu)
	assert.Equal(t, "client@example.com", *session.UserEmail)

	shown, err := svc.ConsumeShowUserMenu(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, shown)
	shown, err = svc.ConsumeShowUserMenu(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, shown)

	require.NoError(t, svc.ClearUser(ctx, "sid"))
	session, err = svc.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, session.UserEmail)
}

func TestSessionServiceStoreFailure(t *testing.T) {
	store := newMemSessionStore()
	store.err = errors.New("redis down")
	svc := newTestSessionService(store, time.Now())

	_, err := svc.Load(context.Background(), "sid")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceTokens(t *testing.T) {
	now := time.Now()
	svc := newTestSessionService(newMemSessionStore(), now)

	sid := svc.NewSessionID()
	require.NotEmpty(t, sid)
	token, err := svc.IssueToken(sid)
	require.NoError(t, err)

	parsed, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, sid, parsed)

	_, err = svc.ParseToken(token + "x")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	other := NewSessionService(newMemSessionStore(), SessionConfig{Secret: "other", Issuer: "taxdesk-test"})
	_, err = other.ParseToken(token)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	expired := newTestSessionService(newMemSessionStore(), now.Add(2*time.Hour))
	_, err = expired.ParseToken(token)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, models.SessionClaims{SessionID: sid})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ParseToken(unsigned)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
