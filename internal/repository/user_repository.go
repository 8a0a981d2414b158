package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

// ErrDuplicateEmail is returned when an account with the same email (case-insensitive) exists.
var ErrDuplicateEmail = errors.New("user account email already exists")

const (
	uniqueViolation = "23505"
	// invalidTextRepresentation is raised when an id does not parse as a uuid.
	invalidTextRepresentation = "22P02"
)

// UserRepository provides database access for registered user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns an account by email, compared case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	const query = `SELECT id, name, email, created_at FROM user_accounts WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var account models.UserAccount
	if err := r.db.GetContext(ctx, &account, query, strings.TrimSpace(email)); err != nil {
		return nil, err
	}
	return &account, nil
}

// Create inserts a new account. The unique index on LOWER(email) backs the duplicate check.
func (r *UserRepository) Create(ctx context.Context, account *models.UserAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_accounts (id, name, email, created_at) VALUES (:id, :name, :email, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user account: %w", err)
	}
	return nil
}

// Count returns the number of registered accounts.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM user_accounts`); err != nil {
		return 0, fmt.Errorf("count user accounts: %w", err)
	}
	return total, nil
}

// noRowsOnMalformedID reports a malformed id as a missing row.
func noRowsOnMalformedID(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == invalidTextRepresentation {
		return sql.ErrNoRows
	}
	return err
}
