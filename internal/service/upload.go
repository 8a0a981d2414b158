package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	appErrors "github.com/noah-isme/taxdesk-api/pkg/errors"
)

// FileUpload carries one uploaded file and its stream.
type FileUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// BlobDownload bundles an opened blob for streaming.
type BlobDownload struct {
	Reader      io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
	ExpiresAt   time.Time
}

var versionSuffix = regexp.MustCompile(`_v\d+$`)

func detectMime(upload FileUpload) (string, error) {
	if upload.Content == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file reader missing")
	}
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	if upload.Size == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	detected, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return "", appErrors.Internal(err, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to reset upload stream")
	}
	return detected.String(), nil
}

// fileExtension returns the lower-cased extension of name without the dot.
func fileExtension(name string) string {
	ext := path.Ext(strings.TrimSpace(name))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func withExtension(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// versionBase strips the directory, every extension and any _vN suffix from a stored key.
func versionBase(key string) string {
	base := path.Base(key)
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}
	return versionSuffix.ReplaceAllString(base, "")
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
