package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

// BlogRepository persists blog posts.
type BlogRepository struct {
	db *sqlx.DB
}

// NewBlogRepository constructs the repository.
func NewBlogRepository(db *sqlx.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

// Create inserts a new post.
func (r *BlogRepository) Create(ctx context.Context, post *models.BlogPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Date.IsZero() {
		post.Date = time.Now().UTC()
	}
	const query = `INSERT INTO blog_posts (id, title, short_info, author, content, image_ref, date)
	VALUES (:id, :title, :short_info, :author, :content, :image_ref, :date)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create blog post: %w", err)
	}
	return nil
}

// GetByID returns one post.
func (r *BlogRepository) GetByID(ctx context.Context, id string) (*models.BlogPost, error) {
	const query = `SELECT id, title, short_info, author, content, image_ref, date FROM blog_posts WHERE id = $1`
	var post models.BlogPost
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &post, nil
}

// List returns all posts ordered by date descending.
func (r *BlogRepository) List(ctx context.Context) ([]models.BlogPost, error) {
	const query = `SELECT id, title, short_info, author, content, image_ref, date FROM blog_posts ORDER BY date DESC`
	posts := make([]models.BlogPost, 0)
	if err := r.db.SelectContext(ctx, &posts, query); err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	return posts, nil
}

// Count returns the number of posts.
func (r *BlogRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM blog_posts`); err != nil {
		return 0, fmt.Errorf("count blog posts: %w", err)
	}
	return total, nil
}

// Delete removes a post.
func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blog post: %w", noRowsOnMalformedID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check blog delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
