// seed-admin creates or updates an admin identity with a bcrypt password hash.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/internal/repository"
	"github.com/noah-isme/taxdesk-api/pkg/config"
	"github.com/noah-isme/taxdesk-api/pkg/database"
	"github.com/noah-isme/taxdesk-api/pkg/logger"
)

func main() {
	var (
		adminID  string
		password string
		role     string
	)
	flag.StringVar(&adminID, "id", "", "Admin login id")
	flag.StringVar(&password, "password", "", "Admin password")
	flag.StringVar(&role, "role", models.AdminRoleDefault, "Admin role: admin, owner or editor")
	flag.Parse()

	adminID = strings.TrimSpace(adminID)
	if adminID == "" || password == "" {
		log.Fatal("both -id and -password are required")
	}
	switch role {
	case models.AdminRoleDefault, models.AdminRoleOwner, models.AdminRoleEditor:
	default:
		log.Fatalf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logr.Fatal("hash password", zap.Error(err))
	}

	repo := repository.NewAdminRepository(db)
	if err := repo.Upsert(ctx, &models.AdminIdentity{ID: adminID, PasswordHash: string(hash), Role: role}); err != nil {
		logr.Fatal("upsert admin", zap.Error(err))
	}
	logr.Info("admin seeded", zap.String("admin_id", adminID), zap.String("role", role))
}
