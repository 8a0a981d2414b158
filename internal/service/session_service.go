package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/taxdesk-api/internal/models"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

type sessionStore interface {
	Fields(ctx context.Context, sid string) (map[string]string, error)
	Set(ctx context.Context, sid string, fields map[string]string) error
	SetIf(ctx context.Context, sid, guardField, guardValue, field, value string) (bool, error)
	Delete(ctx context.Context, sid string, fields ...string) error
	Take(ctx context.Context, sid, field string) (string, bool, error)
}

// SessionConfig configures session token signing.
type SessionConfig struct {
	Secret      string
	TokenExpiry time.Duration
	Issuer      string
}

// SessionService is the single owner of session keys.
type SessionService struct {
	store sessionStore
	cfg   SessionConfig
	now   func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store sessionStore, cfg SessionConfig) *SessionService {
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = 7 * 24 * time.Hour
	}
	return &SessionService{store: store, cfg: cfg, now: time.Now}
}

// NewSessionID returns a fresh random session identifier.
func (s *SessionService) NewSessionID() string {
	return uuid.NewString()
}

// IssueToken signs a bearer token addressing sid.
func (s *SessionService) IssueToken(sid string) (string, error) {
	now := s.now().UTC()
	claims := models.SessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", appErrors.Internal(err, "failed to sign session token")
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns the session id it addresses.
func (s *SessionService) ParseToken(raw string) (string, error) {
	claims := &models.SessionClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid || claims.SessionID == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid session token")
	}
	return claims.SessionID, nil
}

// Load returns the session for sid; an unknown session is empty.
func (s *SessionService) Load(ctx context.Context, sid string) (*models.Session, error) {
	fields, err := s.store.Fields(ctx, sid)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load session")
	}
	return decodeSession(sid, fields), nil
}

// StartAdmin marks the session as an admin login. Activity and role are recorded by the guard.
func (s *SessionService) StartAdmin(ctx context.Context, sid, adminID string) error {
	if err := s.store.Delete(ctx, sid, models.SessionKeyLastAdminActivity, models.SessionKeyAdminRole); err != nil {
		return appErrors.Internal(err, "failed to reset admin session")
	}
	if err := s.store.Set(ctx, sid, map[string]string{
		models.SessionKeyIsAdmin: "true",
		models.SessionKeyAdminID: adminID,
	}); err != nil {
		return appErrors.Internal(err, "failed to start admin session")
	}
	return nil
}

// RecordAdminVerified stores the verified role and the activity timestamp.
func (s *SessionService) RecordAdminVerified(ctx context.Context, sid, role string, at time.Time) error {
	if err := s.store.Set(ctx, sid, map[string]string{
		models.SessionKeyLastAdminActivity: formatMillis(at),
		models.SessionKeyAdminRole:         role,
	}); err != nil {
		return appErrors.Internal(err, "failed to record admin activity")
	}
	return nil
}

// Touch refreshes lastAdminActivity only while the session is an admin session.
func (s *SessionService) Touch(ctx context.Context, sid string, at time.Time) (bool, error) {
	ok, err := s.store.SetIf(ctx, sid, models.SessionKeyIsAdmin, "true", models.SessionKeyLastAdminActivity, formatMillis(at))
	if err != nil {
		return false, appErrors.Internal(err, "failed to refresh admin activity")
	}
	return ok, nil
}

// ClearAdmin removes every admin key.
func (s *SessionService) ClearAdmin(ctx context.Context, sid string) error {
	if err := s.store.Delete(ctx, sid, models.AdminSessionKeys...); err != nil {
		return appErrors.Internal(err, "failed to clear admin session")
	}
	return nil
}

// StartUser records a user login and raises the one-shot user menu flag.
func (s *SessionService) StartUser(ctx context.Context, sid, email string) error {
	if err := s.store.Set(ctx, sid, map[string]string{
		models.SessionKeyUserEmail:    email,
		models.SessionKeyShowUserMenu: "true",
	}); err != nil {
		return appErrors.Internal(err, "failed to start user session")
	}
	return nil
}

// ClearUser removes the user keys.
func (s *SessionService) ClearUser(ctx context.Context, sid string) error {
	if err := s.store.Delete(ctx, sid, models.UserSessionKeys...); err != nil {
		return appErrors.Internal(err, "failed to clear user session")
	}
	return nil
}

// ConsumeShowUserMenu reads and deletes the user menu flag.
func (s *SessionService) ConsumeShowUserMenu(ctx context.Context, sid string) (bool, error) {
	value, ok, err := s.store.Take(ctx, sid, models.SessionKeyShowUserMenu)
	if err != nil {
		return false, appErrors.Internal(err, "failed to read user menu flag")
	}
	return ok && value == "true", nil
}

func decodeSession(sid string, fields map[string]string) *models.Session {
	session := &models.Session{ID: sid}
	if len(fields) == 0 {
		return session
	}
	session.IsAdmin = fields[models.SessionKeyIsAdmin] == "true"
	session.ShowUserMenu = fields[models.SessionKeyShowUserMenu] == "true"
	if v, ok := fields[models.SessionKeyAdminID]; ok && v != "" {
		session.AdminID = &v
	}
	if v, ok := fields[models.SessionKeyAdminRole]; ok && v != "" {
		session.AdminRole = &v
	}
	if v, ok := fields[models.SessionKeyUserEmail]; ok && v != "" {
		session.UserEmail = &v
	}
	if v, ok := fields[models.SessionKeyLastAdminActivity]; ok {
		if millis, err := strconv.ParseInt(v, 10, 64); err == nil {
			at := time.UnixMilli(millis).UTC()
			session.LastAdminActivity = &at
		}
	}
	return session
}

func formatMillis(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli())
}
