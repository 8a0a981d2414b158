package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/taxdesk-api/internal/middleware"
	"github.com/noah-isme/taxdesk-api/internal/service"
)

type fakeActivityTracker struct {
	active bool
	err    error
	sids   []string
}

func (f *fakeActivityTracker) Touch(_ context.Context, sid string) (bool, error) {
	f.sids = append(f.sids, sid)
	return f.active, f.err
}

func TestAdminHandlerActivity(t *testing.T) {
	tracker := &fakeActivityTracker{active: true}
	handler := NewAdminHandler(tracker)

	c, rec := jsonContext(t, http.MethodPost, "/admin/activity", nil)
	c.Set(middleware.ContextSessionKey, "sid-1")
	handler.Activity(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"sid-1"}, tracker.sids)
}

func TestAdminHandlerActivityAfterLogout(t *testing.T) {
	handler := NewAdminHandler(&fakeActivityTracker{active: false})

	c, rec := jsonContext(t, http.MethodPost, "/admin/activity", nil)
	c.Set(middleware.ContextSessionKey, "sid-1")
	handler.Activity(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "SESSION_EXPIRED", env.Error.Code)
	assert.Equal(t, "/login", env.Meta["redirect"])
}

func TestAdminHandlerActivityStoreFailure(t *testing.T) {
	handler := NewAdminHandler(&fakeActivityTracker{err: errors.New("redis down")})
	c, rec := jsonContext(t, http.MethodPost, "/admin/activity", nil)
	handler.Activity(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminHandlerMe(t *testing.T) {
	handler := NewAdminHandler(&fakeActivityTracker{})

	c, rec := jsonContext(t, http.MethodGet, "/admin/me", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = jsonContext(t, http.MethodGet, "/admin/me", nil)
	c.Set(middleware.ContextAdminKey, service.GuardResult{State: service.GuardAuthenticated, AdminID: "admin-1", Role: "owner"})
	handler.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"adminId":"admin-1"`)
}
