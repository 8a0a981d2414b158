package models

import "time"

// Session keys persisted in the session hash. Nothing outside the session store touches them.
const (
	SessionKeyIsAdmin           = "isAdmin"
	SessionKeyAdminID           = "adminId"
	SessionKeyLastAdminActivity = "lastAdminActivity"
	SessionKeyAdminRole         = "adminRole"
	SessionKeyUserEmail         = "userEmail"
	SessionKeyShowUserMenu      = "showUserMenu"
)

// AdminSessionKeys lists the keys cleared on admin logout or timeout.
var AdminSessionKeys = []string{
	SessionKeyIsAdmin,
	SessionKeyAdminID,
	SessionKeyLastAdminActivity,
	SessionKeyAdminRole,
}

// UserSessionKeys lists the keys cleared on user logout.
var UserSessionKeys = []string{
	SessionKeyUserEmail,
	SessionKeyShowUserMenu,
}

// Session is the per-browser state shared by the auth flow and the admin guard.
type Session struct {
	ID                string     `json:"-"`
	IsAdmin           bool       `json:"isAdmin"`
	AdminID           *string    `json:"adminId,omitempty"`
	LastAdminActivity *time.Time `json:"lastAdminActivity,omitempty"`
	AdminRole         *string    `json:"adminRole,omitempty"`
	UserEmail         *string    `json:"userEmail,omitempty"`
	ShowUserMenu      bool       `json:"showUserMenu"`
}

// HasAdminIdentity reports whether the session claims an admin login.
func (s *Session) HasAdminIdentity() bool {
	return s != nil && s.IsAdmin && s.AdminID != nil && *s.AdminID != ""
}

// IdleFor returns how long the admin has been inactive, or false when no activity was recorded.
func (s *Session) IdleFor(now time.Time) (time.Duration, bool) {
	if s == nil || s.LastAdminActivity == nil {
		return 0, false
	}
	return now.Sub(*s.LastAdminActivity), true
}
