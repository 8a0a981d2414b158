package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

const documentColumns = `id, name, path, category, size, type, version, uploaded_at, shared_with`

// DocumentRepository handles document metadata persistence.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an uploaded document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Version < 1 {
		doc.Version = 1
	}
	if doc.SharedWith == nil {
		doc.SharedWith = models.ShareGrants{}
	}
	const query = `INSERT INTO documents (` + documentColumns + `)
	VALUES (:id, :name, :path, :category, :size, :type, :version, :uploaded_at, :shared_with)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &doc, nil
}

// List returns documents of a category, newest first, optionally filtered by a
// case-insensitive substring over name and type.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + documentColumns + ` FROM documents`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR type ILIKE $%d)", len(args), len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY uploaded_at DESC")

	records := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return records, nil
}

// ReplaceVersion points the record at a new binary, guarded by the version the caller read.
// It returns false when another writer bumped the version first.
func (r *DocumentRepository) ReplaceVersion(ctx context.Context, doc *models.Document, expectedVersion int) (bool, error) {
	const query = `UPDATE documents
	SET path = $2, size = $3, type = $4, version = $5, uploaded_at = $6
	WHERE id = $1 AND version = $7`
	res, err := r.db.ExecContext(ctx, query, doc.ID, doc.Path, doc.Size, doc.Type, doc.Version, doc.UploadedAt, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("replace document version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check document version rows: %w", err)
	}
	return affected == 1, nil
}

// AppendShare adds a share grant to the document's sharedWith list.
func (r *DocumentRepository) AppendShare(ctx context.Context, id string, grant models.ShareGrant) error {
	payload, err := json.Marshal([]models.ShareGrant{grant})
	if err != nil {
		return fmt.Errorf("marshal share grant: %w", err)
	}
	const query = `UPDATE documents SET shared_with = COALESCE(shared_with, '[]'::jsonb) || $2::jsonb WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(payload))
	if err != nil {
		return fmt.Errorf("append document share: %w", noRowsOnMalformedID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document share rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", noRowsOnMalformedID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func escapeLike(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}
