package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/internal/service"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

type blogService interface {
	Publish(ctx context.Context, req dto.PublishBlogPostRequest, image *service.FileUpload) (*models.BlogPost, error)
	List(ctx context.Context) ([]models.BlogPost, error)
	Get(ctx context.Context, id string) (*models.BlogPost, error)
	Delete(ctx context.Context, id string) error
	OpenImage(ctx context.Context, name string) (*service.BlobDownload, error)
}

// BlogHandler serves blog administration and the public blog reads.
type BlogHandler struct {
	service blogService
}

// NewBlogHandler constructs the handler.
func NewBlogHandler(service blogService) *BlogHandler {
	return &BlogHandler{service: service}
}

// Publish godoc
// @Summary Publish a blog post
// @Tags Blog
// @Accept multipart/form-data
// @Produce json
// @Param title formData string false "Title"
// @Param shortInfo formData string false "Teaser"
// @Param author formData string false "Author, defaults to Admin"
// @Param content formData string true "Body"
// @Param image formData file false "Cover image, at most 5MB"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /admin/blog/posts [post]
func (h *BlogHandler) Publish(c *gin.Context) {
	var req dto.PublishBlogPostRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid blog payload"))
		return
	}

	var image *service.FileUpload
	if header, err := c.FormFile("image"); err == nil {
		upload, closer, openErr := openUpload(header)
		if openErr != nil {
			response.Error(c, openErr)
			return
		}
		defer closer.Close() //nolint:errcheck
		image = &upload
	}

	post, err := h.service.Publish(c.Request.Context(), req, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// List godoc
// @Summary List blog posts
// @Tags Blog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /blog/posts [get]
func (h *BlogHandler) List(c *gin.Context) {
	posts, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, map[string]interface{}{"total": len(posts)})
}

// Get godoc
// @Summary Get a blog post
// @Tags Blog
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blog/posts/{id} [get]
func (h *BlogHandler) Get(c *gin.Context) {
	post, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, post)
}

// Delete godoc
// @Summary Delete a blog post
// @Tags Blog
// @Param id path string true "Post ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/blog/posts/{id} [delete]
func (h *BlogHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Image godoc
// @Summary Blog cover image
// @Tags Blog
// @Produce octet-stream
// @Param name path string true "Image key"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /blog/images/{name} [get]
func (h *BlogHandler) Image(c *gin.Context) {
	file, err := h.service.OpenImage(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Reader.Close() //nolint:errcheck
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file.Reader, map[string]string{
		"Cache-Control":       "public, max-age=86400",
		"Content-Disposition": fmt.Sprintf("inline; filename=\"%s\"", file.Filename),
	})
}
