package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/taxdesk-api/internal/middleware"
	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/taxdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/taxdesk-api/pkg/middleware/requestid"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	APIPrefix          string
	AllowedOrigins     []string
	EnableDocs         bool
	MaxMultipartMemory int64
}

// RouterDeps bundles the handlers and services mounted by NewRouter.
type RouterDeps struct {
	Logger    *zap.Logger
	Metrics   *service.MetricsService
	Sessions  *service.SessionService
	Guard     *service.AdminGuardService
	Auth      *AuthHandler
	Admin     *AdminHandler
	Documents *DocumentHandler
	Blog      *BlogHandler
	Dashboard *DashboardHandler
	Shared    *SharedHandler
	System    *MetricsHandler
}

// NewRouter builds the gin engine with the full middleware stack and every route.
func NewRouter(cfg RouterConfig, deps RouterDeps) *gin.Engine {
	r := gin.New()
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.System.Health)
	r.GET("/ready", deps.System.Ready)
	r.GET("/metrics", deps.System.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.Session(deps.Sessions))

	auth := api.Group("/auth")
	auth.POST("/submit", deps.Auth.Submit)
	auth.POST("/admin/login", deps.Auth.AdminLogin)
	auth.POST("/login", deps.Auth.UserLogin)
	auth.POST("/signup", deps.Auth.Signup)

	authed := auth.Group("")
	authed.Use(middleware.RequireSession(deps.Sessions))
	authed.POST("/admin/logout", deps.Auth.AdminLogout)
	authed.POST("/logout", deps.Auth.UserLogout)
	authed.GET("/session", deps.Auth.Session)

	api.GET("/blog/posts", deps.Blog.List)
	api.GET("/blog/posts/:id", deps.Blog.Get)
	api.GET("/blog/images/:name", deps.Blog.Image)
	api.GET("/shared/:token", deps.Shared.Download)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminGuard(deps.Guard))
	admin.GET("/me", deps.Admin.Me)
	admin.POST("/activity", deps.Admin.Activity)
	admin.GET("/system/metrics", middleware.RequireAdminRole(models.AdminRoleDefault, models.AdminRoleOwner), deps.System.System)

	docs := admin.Group("/documents")
	docs.GET("", deps.Documents.List)
	docs.GET("/categories", deps.Documents.Categories)
	docs.POST("", deps.Documents.Upload)
	docs.GET("/:id", deps.Documents.Get)
	docs.POST("/:id/versions", deps.Documents.NewVersion)
	docs.POST("/:id/share", deps.Documents.Share)
	docs.GET("/:id/preview", deps.Documents.Preview)
	docs.DELETE("/:id", deps.Documents.Delete)

	blog := admin.Group("/blog/posts")
	blog.POST("", deps.Blog.Publish)
	blog.DELETE("/:id", deps.Blog.Delete)

	dashboard := admin.Group("/dashboard")
	dashboard.GET("", deps.Dashboard.Admin)
	dashboard.GET("/stream", deps.Dashboard.Stream)
	dashboard.GET("/export", deps.Dashboard.Export)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "endpoint not found"))
	})
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, appErrors.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "method not allowed"))
	})

	return r
}
