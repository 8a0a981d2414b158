package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
	"github.com/noah-isme/taxdesk-api/pkg/response"
)

type documentService interface {
	Categories() []string
	List(ctx context.Context, query dto.DocumentListQuery) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Upload(ctx context.Context, category string, files []service.FileUpload) (*dto.DocumentUploadResult, error)
	NewVersion(ctx context.Context, id string, file service.FileUpload) (*models.Document, error)
	Share(ctx context.Context, id string, req dto.ShareDocumentRequest) (*dto.DocumentLinkResponse, error)
	Preview(ctx context.Context, id string) (*dto.DocumentLinkResponse, error)
	Delete(ctx context.Context, id string) error
}

// DocumentHandler manages the document registry endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Categories godoc
// @Summary List document categories
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/documents/categories [get]
func (h *DocumentHandler) Categories(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.DocumentCategoriesResponse{Categories: h.service.Categories()})
}

// List godoc
// @Summary List documents of a category
// @Tags Documents
// @Produce json
// @Param category query string false "Category, defaults to the first one"
// @Param q query string false "Case-insensitive filter over name and type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	docs, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, map[string]interface{}{"total": len(docs)})
}

// Get godoc
// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Upload godoc
// @Summary Upload documents
// @Description Files are stored one after another. The first failure stops the batch and the
// @Description response meta lists what was stored before it.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param category formData string true "Category"
// @Param files formData file true "Documents"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /admin/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, invalidPayload(err, "multipart form expected"))
		return
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["files[]"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	uploads, closers, err := openUploads(headers)
	defer closeAll(closers)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Upload(c.Request.Context(), c.PostForm("category"), uploads)
	if err != nil {
		if result != nil {
			response.Error(c, err, map[string]interface{}{
				"uploaded":    result.Documents,
				"failedIndex": result.FailedIndex,
				"failedName":  result.FailedName,
			})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// NewVersion godoc
// @Summary Replace a document with a new version
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID"
// @Param file formData file true "New binary"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/documents/{id}/versions [post]
func (h *DocumentHandler) NewVersion(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	upload, closer, err := openUpload(header)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closer.Close() //nolint:errcheck

	doc, err := h.service.NewVersion(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc)
}

// Share godoc
// @Summary Create a share link
// @Description Signed link valid for 24 or 168 hours. The link is recorded on the document.
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ShareDocumentRequest true "Expiry"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/documents/{id}/share [post]
func (h *DocumentHandler) Share(c *gin.Context) {
	var req dto.ShareDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid share payload"))
		return
	}
	link, err := h.service.Share(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, map[string]interface{}{"clipboard": true})
}

// Preview godoc
// @Summary Short-lived preview link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/documents/{id}/preview [get]
func (h *DocumentHandler) Preview(c *gin.Context) {
	link, err := h.service.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link)
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func openUploads(headers []*multipart.FileHeader) ([]service.FileUpload, []io.Closer, error) {
	uploads := make([]service.FileUpload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	for _, header := range headers {
		upload, closer, err := openUpload(header)
		if err != nil {
			return nil, closers, err
		}
		uploads = append(uploads, upload)
		closers = append(closers, closer)
	}
	return uploads, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, closer := range closers {
		_ = closer.Close()
	}
}
