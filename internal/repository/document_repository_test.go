package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

var documentRowColumns = []string{"id", "name", "path", "category", "size", "type", "version", "uploaded_at", "shared_with"}

func TestDocumentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{
		Name:     "w9.pdf",
		Path:     "us-tax-forms/0a1b.pdf",
		Category: "us-tax-forms",
		Size:     2048,
		Type:     "application/pdf",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.NotNil(t, doc.SharedWith)

	rows := sqlmock.NewRows(documentRowColumns).
		AddRow(doc.ID, doc.Name, doc.Path, doc.Category, doc.Size, doc.Type, 1, time.Now(), []byte(`[]`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, path")).
		WithArgs(doc.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Path, found.Path)
	assert.Empty(t, found.SharedWith)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows(documentRowColumns).
		AddRow("doc-1", "1040_Form.pdf", "us-tax-forms/a.pdf", "us-tax-forms", 10, "application/pdf", 2, time.Now(), []byte(`[]`))
	mock.ExpectQuery(`FROM documents WHERE category = \$1 AND \(name ILIKE \$2 OR type ILIKE \$2\) ORDER BY uploaded_at DESC`).
		WithArgs("us-tax-forms", `%50\%\_off%`).
		WillReturnRows(rows)

	docs, err := repo.List(context.Background(), models.DocumentFilter{Category: "us-tax-forms", Query: " 50%_off "})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListWithoutQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(`FROM documents WHERE category = \$1 ORDER BY uploaded_at DESC$`).
		WithArgs("tax-treaties").
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	docs, err := repo.List(context.Background(), models.DocumentFilter{Category: "tax-treaties", Query: "  "})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryReplaceVersionOptimistic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	doc := &models.Document{ID: "doc-1", Name: "a_v2.pdf", Path: "us-tax-forms/a_v2.pdf", Size: 5, Type: "application/pdf", Version: 2, UploadedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents")).
		WithArgs(doc.ID, doc.Path, doc.Size, doc.Type, 2, doc.UploadedAt, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.ReplaceVersion(context.Background(), doc, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.ReplaceVersion(context.Background(), doc, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryAppendShare(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	issued := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	grant := models.ShareGrant{URL: "https://x/shared/t", Path: "a.pdf", IssuedAt: issued, ExpiresAt: issued.Add(24 * time.Hour)}

	mock.ExpectExec(regexp.QuoteMeta("shared_with = COALESCE(shared_with, '[]'::jsonb) || $2::jsonb")).
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AppendShare(context.Background(), "doc-1", grant))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET shared_with")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.AppendShare(context.Background(), "missing", grant)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "doc-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents")).
		WithArgs("doc-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "doc-2"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryMalformedIDIsNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, path")).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})
	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents")).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})
	require.ErrorIs(t, repo.Delete(context.Background(), "not-a-uuid"), sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, path")).
		WithArgs("doc-3").
		WillReturnError(&pq.Error{Code: "57014"})
	_, err = repo.GetByID(context.Background(), "doc-3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
