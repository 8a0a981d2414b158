package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

// AdminRepository reads back-office operator identities.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository creates a new instance of AdminRepository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByID returns an admin identity. sql.ErrNoRows is returned unwrapped when absent.
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*models.AdminIdentity, error) {
	const query = `SELECT id, password_hash, role, created_at FROM admin_users WHERE id = $1 LIMIT 1`
	var admin models.AdminIdentity
	if err := r.db.GetContext(ctx, &admin, query, id); err != nil {
		return nil, err
	}
	return &admin, nil
}

// Upsert creates or replaces an admin identity.
func (r *AdminRepository) Upsert(ctx context.Context, admin *models.AdminIdentity) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	if admin.Role == "" {
		admin.Role = models.AdminRoleDefault
	}
	const query = `INSERT INTO admin_users (id, password_hash, role, created_at)
	VALUES (:id, :password_hash, :role, :created_at)
	ON CONFLICT (id) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role`
	if _, err := r.db.NamedExecContext(ctx, query, admin); err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}
