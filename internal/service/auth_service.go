package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/internal/repository"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/events"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.UserAccount, error)
	Create(ctx context.Context, account *models.UserAccount) error
}

type authSessionStore interface {
	NewSessionID() string
	IssueToken(sid string) (string, error)
	Load(ctx context.Context, sid string) (*models.Session, error)
	StartAdmin(ctx context.Context, sid, adminID string) error
	StartUser(ctx context.Context, sid, email string) error
	ClearUser(ctx context.Context, sid string) error
	ConsumeShowUserMenu(ctx context.Context, sid string) (bool, error)
}

type adminSessionTerminator interface {
	Logout(ctx context.Context, sid string) error
}

// AuthServiceParams groups constructor dependencies.
type AuthServiceParams struct {
	Admins    adminLookup
	Users     authUserRepository
	Sessions  authSessionStore
	Guard     adminSessionTerminator
	Validator *validator.Validate
	Publisher events.Publisher
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// AuthService implements the admin and user login flows on top of the session store.
type AuthService struct {
	admins    adminLookup
	users     authUserRepository
	sessions  authSessionStore
	guard     adminSessionTerminator
	validator *validator.Validate
	events    eventEmitter
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(params AuthServiceParams) *AuthService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		admins:    params.Admins,
		users:     params.Users,
		sessions:  params.Sessions,
		guard:     params.Guard,
		validator: validate,
		events:    newEventEmitter(params.Publisher, params.Metrics, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Submit dispatches a single-form submission on its mode.
func (s *AuthService) Submit(ctx context.Context, sid string, req models.AuthSubmitRequest) (*models.AuthResult, error) {
	switch req.Mode {
	case models.AuthModeAdmin:
		return s.AdminLogin(ctx, sid, models.AdminLoginRequest{AdminID: req.AdminID, Password: req.Password})
	case models.AuthModeUserLogin:
		return s.UserLogin(ctx, sid, models.UserLoginRequest{Email: req.Email})
	case models.AuthModeUserSignup:
		return s.Signup(ctx, models.UserSignupRequest{Name: req.Name, Email: req.Email})
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "mode must be one of admin, user-login, user-signup")
	}
}

// AdminLogin checks the admin credentials and marks the session as an admin session.
func (s *AuthService) AdminLogin(ctx context.Context, sid string, req models.AdminLoginRequest) (*models.AuthResult, error) {
	req.AdminID = strings.TrimSpace(req.AdminID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "admin id and password are required")
	}

	admin, err := s.admins.FindByID(ctx, req.AdminID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "")
		}
		return nil, appErrors.Internal(err, "failed to verify admin credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "")
	}

	if sid == "" {
		sid = s.sessions.NewSessionID()
	}
	if err := s.sessions.StartAdmin(ctx, sid, admin.ID); err != nil {
		return nil, err
	}
	token, err := s.sessions.IssueToken(sid)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin logged in", zap.String("admin_id", admin.ID), zap.String("session_id", sid))
	s.events.emit(ctx, events.TypeAdminLogin, admin.ID, map[string]interface{}{"role": admin.RoleOrDefault()})

	return &models.AuthResult{
		Token:   token,
		Mode:    models.AuthModeAdmin,
		IsAdmin: true,
		AdminID: admin.ID,
	}, nil
}

// AdminLogout ends the admin part of the session.
func (s *AuthService) AdminLogout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.guard.Logout(ctx, sid)
}

// UserLogin logs a registered user in by email.
func (s *AuthService) UserLogin(ctx context.Context, sid string, req models.UserLoginRequest) (*models.AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "a valid email is required")
	}

	account, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotRegistered, "")
		}
		return nil, appErrors.Internal(err, "failed to look up account")
	}

	if sid == "" {
		sid = s.sessions.NewSessionID()
	}
	if err := s.sessions.StartUser(ctx, sid, account.Email); err != nil {
		return nil, err
	}
	token, err := s.sessions.IssueToken(sid)
	if err != nil {
		return nil, err
	}

	return &models.AuthResult{
		Token:        token,
		Mode:         models.AuthModeUserLogin,
		UserEmail:    account.Email,
		ShowUserMenu: true,
		Account:      account.Info(),
	}, nil
}

// Signup registers a new account. The caller is not logged in; the next mode is user-login.
func (s *AuthService) Signup(ctx context.Context, req models.UserSignupRequest) (*models.AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "name and a valid email are required")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to look up account")
	}

	account := &models.UserAccount{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
		}
		return nil, appErrors.Internal(err, "failed to create account")
	}

	s.events.emit(ctx, events.TypeUserRegistered, account.ID, map[string]interface{}{"email": account.Email})

	return &models.AuthResult{
		Mode:     models.AuthModeUserSignup,
		NextMode: models.AuthModeUserLogin,
		Account:  account.Info(),
	}, nil
}

// UserLogout clears the user keys of the session.
func (s *AuthService) UserLogout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.sessions.ClearUser(ctx, sid)
}

// Session returns the client view of sid and consumes the one-shot user menu flag.
func (s *AuthService) Session(ctx context.Context, sid string) (*models.SessionView, error) {
	if sid == "" {
		return &models.SessionView{}, nil
	}
	session, err := s.sessions.Load(ctx, sid)
	if err != nil {
		return nil, err
	}
	showMenu := false
	if session.ShowUserMenu {
		if showMenu, err = s.sessions.ConsumeShowUserMenu(ctx, sid); err != nil {
			return nil, err
		}
	}
	return &models.SessionView{
		IsAdmin:      session.HasAdminIdentity(),
		AdminRole:    session.AdminRole,
		UserEmail:    session.UserEmail,
		ShowUserMenu: showMenu,
	}, nil
}
