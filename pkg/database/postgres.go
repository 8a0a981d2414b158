package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/taxdesk-api/pkg/config"
)

// BlogChangesChannel is the NOTIFY channel fed by the blog_posts trigger.
const BlogChangesChannel = "blog_posts_changes"

const (
	driverName      = "postgres"
	pingTimeout     = 5 * time.Second
	firstRetryDelay = 500 * time.Millisecond
)

// NewPostgres opens the pool and waits for the server to answer. Startup
// ordering in compose setups often brings the API up before Postgres, so the
// ping is retried up to cfg.ConnectAttempts times with doubling delays.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	tunePool(db, cfg)

	if err := pingWithRetry(ctx, db, cfg.ConnectAttempts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}

func tunePool(db *sqlx.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}
	delay := firstRetryDelay
	var err error
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil || attempt >= attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
