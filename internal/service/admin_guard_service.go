package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

type guardSessionStore interface {
	Load(ctx context.Context, sid string) (*models.Session, error)
	RecordAdminVerified(ctx context.Context, sid, role string, at time.Time) error
	Touch(ctx context.Context, sid string, at time.Time) (bool, error)
	ClearAdmin(ctx context.Context, sid string) error
}

type adminLookup interface {
	FindByID(ctx context.Context, id string) (*models.AdminIdentity, error)
}

// GuardState is the state of the admin guard for one session.
type GuardState string

const (
	GuardVerifying       GuardState = "verifying"
	GuardAuthenticated   GuardState = "authenticated"
	GuardUnauthenticated GuardState = "unauthenticated"
)

// Reasons reported with GuardUnauthenticated.
const (
	GuardReasonNotLoggedIn  = "NOT_LOGGED_IN"
	GuardReasonExpired      = "SESSION_EXPIRED"
	GuardReasonUnknownAdmin = "ADMIN_NOT_FOUND"
	GuardReasonLookupFailed = "ADMIN_LOOKUP_FAILED"
)

// GuardResult is the outcome of a verification.
type GuardResult struct {
	State   GuardState
	Reason  string
	AdminID string
	Role    string
}

// Authenticated reports whether access was granted.
func (r GuardResult) Authenticated() bool {
	return r.State == GuardAuthenticated
}

// AdminGuardConfig tunes inactivity handling.
type AdminGuardConfig struct {
	Timeout       time.Duration
	CheckInterval time.Duration
}

type sessionMonitor struct {
	cancel context.CancelFunc
}

// AdminGuardService verifies admin sessions and owns one inactivity monitor per authenticated session.
type AdminGuardService struct {
	sessions guardSessionStore
	admins   adminLookup
	logger   *zap.Logger
	metrics  *MetricsService
	cfg      AdminGuardConfig
	now      func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	monitors map[string]*sessionMonitor
	wg       sync.WaitGroup
	closed   bool
}

// NewAdminGuardService constructs the guard. Close must be called to stop running monitors.
func NewAdminGuardService(sessions guardSessionStore, admins adminLookup, metrics *MetricsService, logger *zap.Logger, cfg AdminGuardConfig) *AdminGuardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AdminGuardService{
		sessions: sessions,
		admins:   admins,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		monitors: make(map[string]*sessionMonitor),
	}
}

// Verify runs the guard for sid: staleness first, then the session claim, then the remote admin lookup.
func (s *AdminGuardService) Verify(ctx context.Context, sid string) (GuardResult, error) {
	result, err := s.verify(ctx, sid)
	if err == nil && s.metrics != nil {
		s.metrics.RecordGuardDecision(result)
	}
	return result, err
}

func (s *AdminGuardService) verify(ctx context.Context, sid string) (GuardResult, error) {
	session, err := s.sessions.Load(ctx, sid)
	if err != nil {
		return GuardResult{State: GuardVerifying}, err
	}

	now := s.now()
	if idle, ok := session.IdleFor(now); ok && idle > s.cfg.Timeout {
		if err := s.forceLogout(ctx, sid); err != nil {
			return GuardResult{State: GuardVerifying}, err
		}
		s.logger.Info("admin session expired", zap.String("session_id", sid), zap.Duration("idle", idle))
		return GuardResult{State: GuardUnauthenticated, Reason: GuardReasonExpired}, nil
	}

	if !session.HasAdminIdentity() {
		return GuardResult{State: GuardUnauthenticated, Reason: GuardReasonNotLoggedIn}, nil
	}

	adminID := *session.AdminID
	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil || admin == nil {
		reason := GuardReasonUnknownAdmin
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			reason = GuardReasonLookupFailed
			s.logger.Warn("admin lookup failed", zap.String("session_id", sid), zap.Error(err))
		}
		if clearErr := s.forceLogout(ctx, sid); clearErr != nil {
			return GuardResult{State: GuardVerifying}, clearErr
		}
		return GuardResult{State: GuardUnauthenticated, Reason: reason}, nil
	}

	role := admin.RoleOrDefault()
	if err := s.sessions.RecordAdminVerified(ctx, sid, role, now); err != nil {
		return GuardResult{State: GuardVerifying}, err
	}
	s.startMonitor(sid)

	return GuardResult{State: GuardAuthenticated, AdminID: adminID, Role: role}, nil
}

// Touch records admin activity for sid. It reports false when the session is no longer an admin session.
func (s *AdminGuardService) Touch(ctx context.Context, sid string) (bool, error) {
	ok, err := s.sessions.Touch(ctx, sid, s.now())
	if err != nil {
		return false, err
	}
	if !ok {
		s.stopMonitor(sid)
	}
	return ok, nil
}

// Logout clears the admin keys of sid and cancels its monitor.
func (s *AdminGuardService) Logout(ctx context.Context, sid string) error {
	s.stopMonitor(sid)
	return s.sessions.ClearAdmin(ctx, sid)
}

// ActiveMonitors reports how many sessions are being watched.
func (s *AdminGuardService) ActiveMonitors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.monitors)
}

// Close cancels every monitor and waits for them to exit.
func (s *AdminGuardService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.monitors = make(map[string]*sessionMonitor)
	s.mu.Unlock()
	s.wg.Wait()
	s.reportMonitors()
}

func (s *AdminGuardService) forceLogout(ctx context.Context, sid string) error {
	s.stopMonitor(sid)
	return s.sessions.ClearAdmin(ctx, sid)
}

func (s *AdminGuardService) startMonitor(sid string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.monitors[sid]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	mon := &sessionMonitor{cancel: cancel}
	s.monitors[sid] = mon
	s.wg.Add(1)
	s.mu.Unlock()

	s.reportMonitors()
	go s.runMonitor(ctx, sid, mon)
}

func (s *AdminGuardService) stopMonitor(sid string) {
	s.mu.Lock()
	mon, ok := s.monitors[sid]
	if ok {
		delete(s.monitors, sid)
	}
	s.mu.Unlock()
	if ok {
		mon.cancel()
		s.reportMonitors()
	}
}

func (s *AdminGuardService) runMonitor(ctx context.Context, sid string, mon *sessionMonitor) {
	defer s.wg.Done()
	defer func() {
		mon.cancel()
		s.mu.Lock()
		if current, ok := s.monitors[sid]; ok && current == mon {
			delete(s.monitors, sid)
		}
		s.mu.Unlock()
		s.reportMonitors()
	}()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := s.checkSession(ctx, sid); done {
				return
			}
		}
	}
}

// checkSession reports whether the monitor for sid should exit.
func (s *AdminGuardService) checkSession(ctx context.Context, sid string) bool {
	session, err := s.sessions.Load(ctx, sid)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.logger.Warn("session monitor failed to load session", zap.String("session_id", sid), zap.Error(err))
		return false
	}
	if !session.HasAdminIdentity() {
		return true
	}
	idle, ok := session.IdleFor(s.now())
	if !ok || idle <= s.cfg.Timeout {
		return false
	}
	if err := s.sessions.ClearAdmin(ctx, sid); err != nil {
		s.logger.Warn("session monitor failed to clear expired session", zap.String("session_id", sid), zap.Error(err))
		return false
	}
	s.logger.Info("admin session expired", zap.String("session_id", sid), zap.Duration("idle", idle))
	if s.metrics != nil {
		s.metrics.RecordGuardDecision(GuardResult{State: GuardUnauthenticated, Reason: GuardReasonExpired})
	}
	return true
}

func (s *AdminGuardService) reportMonitors() {
	if s.metrics != nil {
		s.metrics.SetActiveMonitors(s.ActiveMonitors())
	}
}
