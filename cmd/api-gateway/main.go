package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/taxdesk-api/api/swagger"
	"github.com/noah-isme/taxdesk-api/internal/handler"
	"github.com/noah-isme/taxdesk-api/internal/repository"
	"github.com/noah-isme/taxdesk-api/internal/service"
	"github.com/noah-isme/taxdesk-api/pkg/cache"
	"github.com/noah-isme/taxdesk-api/pkg/config"
	"github.com/noah-isme/taxdesk-api/pkg/database"
	"github.com/noah-isme/taxdesk-api/pkg/events"
	"github.com/noah-isme/taxdesk-api/pkg/jobs"
	"github.com/noah-isme/taxdesk-api/pkg/logger"
	"github.com/noah-isme/taxdesk-api/pkg/realtime"
	"github.com/noah-isme/taxdesk-api/pkg/storage"
)

// @title TaxDesk API
// @version 1.0.0
// @description Back-office API for the tax advisory site: admin sessions, document registry, blog and dashboard.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey SessionToken
// @in header
// @name Authorization

const (
	appName         = "taxdesk"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	} else {
		figure.NewFigure(appName, "cybermedium", true).Print()
		fmt.Println()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
	logr.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close() //nolint:errcheck

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret)
	blobs, verifier, err := newBlobStore(ctx, cfg, signer)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logr)
	if err != nil {
		return err
	}
	defer publisher.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	adminRepo := repository.NewAdminRepository(db)
	userRepo := repository.NewUserRepository(db)
	blogRepo := repository.NewBlogRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient)

	sessions := service.NewSessionService(sessionRepo, service.SessionConfig{
		Secret:      cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	guard := service.NewAdminGuardService(sessions, adminRepo, metrics, logr, service.AdminGuardConfig{
		Timeout:       cfg.Session.Timeout,
		CheckInterval: cfg.Session.CheckInterval,
	})
	defer guard.Close()

	authSvc := service.NewAuthService(service.AuthServiceParams{
		Admins:    adminRepo,
		Users:     userRepo,
		Sessions:  sessions,
		Guard:     guard,
		Validator: validate,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logr,
	})

	cleanup := service.NewBlobCleanupService(blobs, documentRepo, metrics, logr)
	cleanupQueue := jobs.NewQueue("blob-cleanup", cleanup.Handle, jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.MaxRetries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
	})
	cleanup.UseScheduler(cleanupQueue)
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()
	metrics.TrackQueue("blob-cleanup", cleanupQueue)

	documentSvc := service.NewDocumentService(service.DocumentServiceParams{
		Repo:      documentRepo,
		Blobs:     blobs,
		Cleanup:   cleanupQueue,
		Validator: validate,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logr,
		Config: service.DocumentServiceConfig{
			Bucket:      cfg.Storage.DocumentsBucket,
			Categories:  cfg.Documents.Categories,
			MaxFileSize: cfg.Documents.MaxFileSizeBytes,
		},
	})

	imageBaseURL := cfg.PublicBaseURL + cfg.APIPrefix + "/blog/images"
	blogSvc := service.NewBlogService(blogRepo, blobs, publisher, metrics, logr, service.BlogServiceConfig{
		Bucket:       cfg.Storage.BlogBucket,
		MaxImageSize: cfg.Blog.MaxImageSizeBytes,
		ImageBaseURL: imageBaseURL,
	})

	broker := realtime.NewBroker(8)
	defer broker.Close()
	listener := realtime.NewPGListener(cfg.Database.DSN(), database.BlogChangesChannel, broker, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, logr, service.CacheOptions{
		Namespace: cfg.Dashboard.CacheNamespace,
		TTL:       cfg.Dashboard.CacheTTL,
		Disabled:  !cfg.Dashboard.CacheEnabled,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Posts:   blogRepo,
		Users:   userRepo,
		Feed:    broker,
		Cache:   cacheSvc,
		Metrics: metrics,
		Logger:  logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:     cfg.Dashboard.CacheTTL,
			ImageBaseURL: imageBaseURL,
		},
	})

	sharedSvc := service.NewSharedLinkService(verifier, blobs, cfg.Storage.DocumentsBucket)

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:          cfg.APIPrefix,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		EnableDocs:         cfg.Env != config.EnvProduction,
		MaxMultipartMemory: cfg.Documents.MaxFileSizeBytes,
	}, handler.RouterDeps{
		Logger:    logr,
		Metrics:   metrics,
		Sessions:  sessions,
		Guard:     guard,
		Auth:      handler.NewAuthHandler(authSvc),
		Admin:     handler.NewAdminHandler(guard),
		Documents: handler.NewDocumentHandler(documentSvc),
		Blog:      handler.NewBlogHandler(blogSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Shared:    handler.NewSharedHandler(sharedSvc),
		System: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}, logr),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return listener.Run(gctx)
	})
	g.Go(func() error {
		return dashboardSvc.RunInvalidator(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("shutting down")
		guard.Close()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newBlobStore selects the storage driver. Only the local driver serves share links through the API.
func newBlobStore(ctx context.Context, cfg *config.Config, signer *storage.SignedURLSigner) (storage.BlobStore, service.SignedTokenVerifier, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		store, err := storage.NewS3Storage(ctx, storage.S3Options{
			Region:       cfg.Storage.S3Region,
			Endpoint:     cfg.Storage.S3Endpoint,
			UsePathStyle: cfg.Storage.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return store, nil, nil
	case config.StorageDriverLocal, "":
		store, err := storage.NewLocalStorage(cfg.Storage.LocalDir, signer, cfg.PublicBaseURL+cfg.APIPrefix+"/shared")
		if err != nil {
			return nil, nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, signer, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newPublisher(cfg *config.Config, logr *zap.Logger) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logr)
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return publisher, nil
}
