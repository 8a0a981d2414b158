package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmailIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "email", "created_at"}).
		AddRow("1", "Asha", "asha@example.com", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, created_at FROM user_accounts WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Asha@Example.com").
		WillReturnRows(rows)

	account, err := repo.FindByEmail(context.Background(), " Asha@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", account.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_accounts")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateAccountDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_accounts")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	account := &models.UserAccount{Name: "Asha", Email: "asha@example.com"}
	require.NoError(t, repo.Create(context.Background(), account))
	assert.NotEmpty(t, account.ID)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_accounts")).
		WillReturnError(&pq.Error{Code: "23505"})
	err := repo.Create(context.Background(), &models.UserAccount{Name: "Asha", Email: "ASHA@example.com"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAccounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestAdminRepositoryFindAndUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, password_hash, role, created_at FROM admin_users WHERE id = $1")).
		WithArgs("ops").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "role", "created_at"}).AddRow("ops", "hash", "", time.Now()))
	admin, err := repo.FindByID(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, models.AdminRoleDefault, admin.RoleOrDefault())

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	upsert := &models.AdminIdentity{ID: "ops", PasswordHash: "hash"}
	require.NoError(t, repo.Upsert(context.Background(), upsert))
	assert.Equal(t, models.AdminRoleDefault, upsert.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}
