package handler

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/middleware"
	"github.com/noah-isme/taxdesk-api/internal/service"
	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

func sessionFromContext(c *gin.Context) string {
	return middleware.SessionID(c)
}

// openUpload turns a multipart header into a FileUpload. The caller closes the returned file.
func openUpload(header *multipart.FileHeader) (service.FileUpload, io.Closer, error) {
	src, err := header.Open()
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Internal(err, "failed to open file")
	}
	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		_ = src.Close()
		if readErr != nil {
			return service.FileUpload{}, nil, appErrors.Internal(readErr, "failed to buffer file")
		}
		return service.FileUpload{
			Filename: header.Filename,
			Size:     int64(len(buf)),
			MimeType: header.Header.Get("Content-Type"),
			Content:  bytes.NewReader(buf),
		}, io.NopCloser(nil), nil
	}
	return service.FileUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  reader,
	}, src, nil
}

func invalidPayload(err error, message string) error {
	return appErrors.Validation(err, message)
}
