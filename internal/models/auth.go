package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthMode selects which form the login page submits.
type AuthMode string

const (
	AuthModeAdmin      AuthMode = "admin"
	AuthModeUserLogin  AuthMode = "user-login"
	AuthModeUserSignup AuthMode = "user-signup"
)

// Valid reports whether m is a known mode.
func (m AuthMode) Valid() bool {
	switch m {
	case AuthModeAdmin, AuthModeUserLogin, AuthModeUserSignup:
		return true
	}
	return false
}

// AdminLoginRequest holds admin credentials.
type AdminLoginRequest struct {
	AdminID  string `json:"adminId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserLoginRequest identifies a registered user by email.
type UserLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UserSignupRequest registers a new user account.
type UserSignupRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// AuthSubmitRequest is the single-form payload dispatched on Mode.
type AuthSubmitRequest struct {
	Mode     AuthMode `json:"mode" validate:"required"`
	AdminID  string   `json:"adminId"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
}

// AuthResult is returned by every successful auth call.
type AuthResult struct {
	Token        string    `json:"token,omitempty"`
	Mode         AuthMode  `json:"mode"`
	IsAdmin      bool      `json:"isAdmin"`
	AdminID      string    `json:"adminId,omitempty"`
	UserEmail    string    `json:"userEmail,omitempty"`
	ShowUserMenu bool      `json:"showUserMenu"`
	NextMode     AuthMode  `json:"nextMode,omitempty"`
	Account      *UserInfo `json:"account,omitempty"`
}

// UserInfo describes a registered user in responses.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionView is the client-facing projection of a session.
type SessionView struct {
	IsAdmin      bool    `json:"isAdmin"`
	AdminRole    *string `json:"adminRole,omitempty"`
	UserEmail    *string `json:"userEmail,omitempty"`
	ShowUserMenu bool    `json:"showUserMenu"`
}

// SessionClaims is the JWT payload addressing a server-side session.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
