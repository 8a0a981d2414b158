package models

import "time"

// Admin roles. AdminRoleDefault is recorded when an admin identity carries no role.
const (
	AdminRoleDefault = "admin"
	AdminRoleOwner   = "owner"
	AdminRoleEditor  = "editor"
)

// AdminIdentity is a back-office operator stored in admin_users.
type AdminIdentity struct {
	ID           string    `db:"id" json:"id"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// RoleOrDefault returns the role, falling back to AdminRoleDefault.
func (a *AdminIdentity) RoleOrDefault() string {
	if a == nil || a.Role == "" {
		return AdminRoleDefault
	}
	return a.Role
}

// UserAccount is a registered site visitor stored in user_accounts.
type UserAccount struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Info converts the account for responses.
func (u *UserAccount) Info() *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{ID: u.ID, Name: u.Name, Email: u.Email}
}
