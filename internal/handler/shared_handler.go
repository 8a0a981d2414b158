package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/service"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

type sharedLinkService interface {
	Open(ctx context.Context, token string) (*service.BlobDownload, error)
}

// SharedHandler streams binaries behind signed share links.
type SharedHandler struct {
	service sharedLinkService
}

// NewSharedHandler constructs the handler.
func NewSharedHandler(service sharedLinkService) *SharedHandler {
	return &SharedHandler{service: service}
}

// Download godoc
// @Summary Download a shared document
// @Description Public endpoint. The token carries the object and its expiry.
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /shared/{token} [get]
func (h *SharedHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Reader.Close() //nolint:errcheck
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file.Reader, map[string]string{
		"Cache-Control":       "no-store",
		"Content-Disposition": fmt.Sprintf("attachment; filename=\"%s\"", file.Filename),
	})
}
