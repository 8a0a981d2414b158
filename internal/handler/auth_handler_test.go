package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxdesk-api/internal/middleware"
	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

type fakeAuthSrv struct {
	result    *models.AuthResult
	err       error
	view      *models.SessionView
	lastSID   string
	lastAdmin models.AdminLoginRequest
	logouts   []string
}

func (f *fakeAuthSrv) Submit(_ context.Context, sid string, req models.AuthSubmitRequest) (*models.AuthResult, error) {
	f.lastSID = sid
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Mode = req.Mode
	return &res, nil
}

func (f *fakeAuthSrv) AdminLogin(_ context.Context, sid string, req models.AdminLoginRequest) (*models.AuthResult, error) {
	f.lastSID = sid
	f.lastAdmin = req
	return f.result, f.err
}

func (f *fakeAuthSrv) AdminLogout(_ context.Context, sid string) error {
	f.logouts = append(f.logouts, "admin:"+sid)
	return f.err
}

func (f *fakeAuthSrv) UserLogin(_ context.Context, sid string, _ models.UserLoginRequest) (*models.AuthResult, error) {
	f.lastSID = sid
	return f.result, f.err
}

func (f *fakeAuthSrv) Signup(context.Context, models.UserSignupRequest) (*models.AuthResult, error) {
	return f.result, f.err
}

func (f *fakeAuthSrv) UserLogout(_ context.Context, sid string) error {
	f.logouts = append(f.logouts, "user:"+sid)
	return f.err
}

func (f *fakeAuthSrv) Session(_ context.Context, sid string) (*models.SessionView, error) {
	f.lastSID = sid
	return f.view, f.err
}

type errorEnvelope struct {
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func jsonBody(t *testing.T, body interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return &buf
}

func jsonContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, jsonBody(t, body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return env
}

func TestAuthHandlerAdminLogin(t *testing.T) {
	srv := &fakeAuthSrv{result: &models.AuthResult{Token: "tok", Mode: models.AuthModeAdmin, IsAdmin: true, AdminID: "admin-1"}}
	handler := NewAuthHandler(srv)

	c, rec := jsonContext(t, http.MethodPost, "/auth/admin/login", map[string]string{"adminId": "admin-1", "password": "pw"})
	c.Set(middleware.ContextSessionKey, "sid-1")
	handler.AdminLogin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sid-1", srv.lastSID)
	assert.Equal(t, "admin-1", srv.lastAdmin.AdminID)

	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "tok", env.Data["token"])
}

func TestAuthHandlerAdminLoginRejectsMalformedJSON(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/admin/login", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AdminLogin(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeError(t, rec).Error.Code)
}

func TestAuthHandlerUserLoginNotRegisteredSuggestsSignup(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrNotRegistered})

	c, rec := jsonContext(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@b.co"})
	handler.UserLogin(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "NOT_REGISTERED", env.Error.Code)
	assert.Equal(t, "user-signup", env.Meta["suggestedMode"])
}

func TestAuthHandlerSignupCreated(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{result: &models.AuthResult{Mode: models.AuthModeUserSignup, NextMode: models.AuthModeUserLogin}})

	c, rec := jsonContext(t, http.MethodPost, "/auth/signup", map[string]string{"name": "Ann", "email": "a@b.co"})
	handler.Signup(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "user-login", env.Data["nextMode"])
}

func TestAuthHandlerSignupConflict(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrAlreadyRegistered})

	c, rec := jsonContext(t, http.MethodPost, "/auth/signup", map[string]string{"name": "Ann", "email": "a@b.co"})
	handler.Signup(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandlerSubmitStatusFollowsMode(t *testing.T) {
	srv := &fakeAuthSrv{result: &models.AuthResult{}}
	handler := NewAuthHandler(srv)

	c, rec := jsonContext(t, http.MethodPost, "/auth/submit", map[string]string{"mode": "user-signup", "name": "Ann", "email": "a@b.co"})
	handler.Submit(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = jsonContext(t, http.MethodPost, "/auth/submit", map[string]string{"mode": "user-login", "email": "a@b.co"})
	handler.Submit(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandlerLogoutsAndSession(t *testing.T) {
	menu := "a@b.co"
	srv := &fakeAuthSrv{view: &models.SessionView{UserEmail: &menu, ShowUserMenu: true}}
	handler := NewAuthHandler(srv)

	c, rec := jsonContext(t, http.MethodPost, "/auth/admin/logout", nil)
	c.Set(middleware.ContextSessionKey, "sid-1")
	handler.AdminLogout(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = jsonContext(t, http.MethodPost, "/auth/logout", nil)
	c.Set(middleware.ContextSessionKey, "sid-1")
	handler.UserLogout(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"admin:sid-1", "user:sid-1"}, srv.logouts)

	c, rec = jsonContext(t, http.MethodGet, "/auth/session", nil)
	c.Set(middleware.ContextSessionKey, "sid-1")
	handler.Session(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, true, env.Data["showUserMenu"])
	assert.Equal(t, "a@b.co", env.Data["userEmail"])
}
