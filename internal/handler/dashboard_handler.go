package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/middleware"
	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/realtime"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

const defaultStreamKeepAlive = 25 * time.Second

type dashboardService interface {
	Summary(ctx context.Context) (*dto.AdminDashboardResponse, bool, error)
	Refresh(ctx context.Context) (*dto.AdminDashboardResponse, error)
	Subscribe() (<-chan realtime.Event, func(), error)
	Export(ctx context.Context, format string) (*service.ExportFile, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service   dashboardService
	keepAlive time.Duration
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service, keepAlive: defaultStreamKeepAlive}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Stream godoc
// @Summary Live dashboard updates
// @Description Server-sent events. A snapshot is sent on connect and after every blog change.
// @Tags Dashboard
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/dashboard/stream [get]
func (h *DashboardHandler) Stream(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	changes, release, err := h.service.Subscribe()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	ctx := c.Request.Context()
	snapshot, err := h.service.Refresh(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", snapshot)
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				return false
			}
			drain(changes)
			snapshot, err := h.service.Refresh(ctx)
			if err != nil {
				c.SSEvent("error", appErrors.FromError(err))
				return true
			}
			c.SSEvent("snapshot", snapshot)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// Export godoc
// @Summary Export the post list
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/dashboard/export [get]
func (h *DashboardHandler) Export(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query dto.DashboardExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// drain coalesces a burst of change notifications into one refresh.
func drain(changes <-chan realtime.Event) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
