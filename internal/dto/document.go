package dto

import (
	"time"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

// DocumentListQuery filters the document listing.
type DocumentListQuery struct {
	Category string `form:"category"`
	Query    string `form:"q"`
}

// ShareDocumentRequest asks for a share link valid for one day or one week.
type ShareDocumentRequest struct {
	ExpiryHours int `json:"expiryHours" validate:"required,oneof=24 168"`
}

// DocumentLinkResponse is a signed link to a document binary.
type DocumentLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DocumentUploadResult reports a multi-file upload. FailedIndex is set when the batch stopped early.
type DocumentUploadResult struct {
	Documents   []models.Document `json:"documents"`
	FailedIndex *int              `json:"failedIndex,omitempty"`
	FailedName  string            `json:"failedName,omitempty"`
}

// DocumentCategoriesResponse lists the configured categories.
type DocumentCategoriesResponse struct {
	Categories []string `json:"categories"`
}
