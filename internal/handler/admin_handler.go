package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/middleware"
	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

type adminActivityTracker interface {
	Touch(ctx context.Context, sid string) (bool, error)
}

// AdminHandler serves admin session endpoints that sit behind the guard.
type AdminHandler struct {
	guard adminActivityTracker
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(guard adminActivityTracker) *AdminHandler {
	return &AdminHandler{guard: guard}
}

// Me godoc
// @Summary Current admin
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/me [get]
func (h *AdminHandler) Me(c *gin.Context) {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"adminId": admin.AdminID, "role": admin.Role})
}

// Activity godoc
// @Summary Admin activity heartbeat
// @Description Records user activity so the idle timeout restarts.
// @Tags Admin
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /admin/activity [post]
func (h *AdminHandler) Activity(c *gin.Context) {
	active, err := h.guard.Touch(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !active {
		response.Error(c, appErrors.ErrSessionExpired, map[string]interface{}{
			"redirect": "/login",
			"reason":   service.GuardReasonExpired,
		})
		return
	}
	response.NoContent(c)
}
