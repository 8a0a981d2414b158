package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxdesk-api/internal/dto"
	"github.com/noah-isme/taxdesk-api/internal/models"
	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

type fakeDocumentSrv struct {
	uploadCategory string
	uploadNames    []string
	uploadBodies   []string
	uploadResult   *dto.DocumentUploadResult
	uploadErr      error
	versionFile    string
	shareReq       dto.ShareDocumentRequest
	deleted        []string
	err            error
}

func (f *fakeDocumentSrv) Categories() []string { return []string{"us-tax-forms", "client-resources"} }

func (f *fakeDocumentSrv) List(_ context.Context, query dto.DocumentListQuery) ([]models.Document, error) {
	return []models.Document{{ID: "doc-1", Category: query.Category, Name: query.Query}}, f.err
}

func (f *fakeDocumentSrv) Get(_ context.Context, id string) (*models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{ID: id}, nil
}

func (f *fakeDocumentSrv) Upload(_ context.Context, category string, files []service.FileUpload) (*dto.DocumentUploadResult, error) {
	f.uploadCategory = category
	for _, file := range files {
		f.uploadNames = append(f.uploadNames, file.Filename)
		body, _ := io.ReadAll(file.Content)
		f.uploadBodies = append(f.uploadBodies, string(body))
	}
	return f.uploadResult, f.uploadErr
}

func (f *fakeDocumentSrv) NewVersion(_ context.Context, id string, file service.FileUpload) (*models.Document, error) {
	f.versionFile = file.Filename
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{ID: id, Version: 2}, nil
}

func (f *fakeDocumentSrv) Share(_ context.Context, _ string, req dto.ShareDocumentRequest) (*dto.DocumentLinkResponse, error) {
	f.shareReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.DocumentLinkResponse{URL: "https://files.example/x", ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
}

func (f *fakeDocumentSrv) Preview(context.Context, string) (*dto.DocumentLinkResponse, error) {
	return &dto.DocumentLinkResponse{URL: "https://files.example/p"}, f.err
}

func (f *fakeDocumentSrv) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type multipartFile struct {
	field string
	name  string
	body  string
}

func multipartContext(t *testing.T, target string, fields map[string]string, files ...multipartFile) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.body))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, target, &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	return c, rec
}

func TestDocumentHandlerUploadPassesFilesInOrder(t *testing.T) {
	srv := &fakeDocumentSrv{uploadResult: &dto.DocumentUploadResult{Documents: []models.Document{{ID: "a"}, {ID: "b"}}}}
	handler := NewDocumentHandler(srv)

	c, rec := multipartContext(t, "/admin/documents", map[string]string{"category": "us-tax-forms"},
		multipartFile{field: "files", name: "w9.pdf", body: "one"},
		multipartFile{field: "files", name: "1040.pdf", body: "two"},
	)
	handler.Upload(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "us-tax-forms", srv.uploadCategory)
	assert.Equal(t, []string{"w9.pdf", "1040.pdf"}, srv.uploadNames)
	assert.Equal(t, []string{"one", "two"}, srv.uploadBodies)
}

func TestDocumentHandlerUploadReportsPartialFailure(t *testing.T) {
	failed := 1
	srv := &fakeDocumentSrv{
		uploadResult: &dto.DocumentUploadResult{Documents: []models.Document{{ID: "a"}}, FailedIndex: &failed, FailedName: "bad.pdf"},
		uploadErr:    appErrors.Clone(appErrors.ErrPayloadTooLarge, "file too large"),
	}
	handler := NewDocumentHandler(srv)

	c, rec := multipartContext(t, "/admin/documents", map[string]string{"category": "us-tax-forms"},
		multipartFile{field: "files[]", name: "ok.pdf", body: "one"},
		multipartFile{field: "files[]", name: "bad.pdf", body: "two"},
	)
	handler.Upload(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, float64(1), env.Meta["failedIndex"])
	assert.Equal(t, "bad.pdf", env.Meta["failedName"])
	assert.Len(t, env.Meta["uploaded"], 1)
}

func TestDocumentHandlerUploadRequiresFiles(t *testing.T) {
	handler := NewDocumentHandler(&fakeDocumentSrv{})
	c, rec := multipartContext(t, "/admin/documents", map[string]string{"category": "us-tax-forms"})
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandlerNewVersion(t *testing.T) {
	srv := &fakeDocumentSrv{}
	handler := NewDocumentHandler(srv)

	c, rec := multipartContext(t, "/admin/documents/doc-1/versions", nil, multipartFile{field: "file", name: "w9.pdf", body: "v2"})
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.NewVersion(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "w9.pdf", srv.versionFile)

	srv.err = appErrors.ErrVersionConflict
	c, rec = multipartContext(t, "/admin/documents/doc-1/versions", nil, multipartFile{field: "file", name: "w9.pdf", body: "v3"})
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.NewVersion(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDocumentHandlerShareFlagsClipboard(t *testing.T) {
	srv := &fakeDocumentSrv{}
	handler := NewDocumentHandler(srv)

	c, rec := jsonContext(t, http.MethodPost, "/admin/documents/doc-1/share", map[string]int{"expiryHours": 168})
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.Share(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 168, srv.shareReq.ExpiryHours)
	var env struct {
		Data dto.DocumentLinkResponse `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "https://files.example/x", env.Data.URL)
	assert.Equal(t, true, env.Meta["clipboard"])
}

func TestDocumentHandlerListAndDelete(t *testing.T) {
	srv := &fakeDocumentSrv{}
	handler := NewDocumentHandler(srv)

	c, rec := jsonContext(t, http.MethodGet, "/admin/documents?category=us-tax-forms&q=w9", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []models.Document      `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "us-tax-forms", env.Data[0].Category)
	assert.Equal(t, "w9", env.Data[0].Name)

	c, rec = jsonContext(t, http.MethodDelete, "/admin/documents/doc-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"doc-1"}, srv.deleted)
}
