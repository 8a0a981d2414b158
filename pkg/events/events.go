package events

import (
	"context"
	"time"
)

// Event types emitted by the back-office.
const (
	TypeAdminLogin        = "admin.login"
	TypeUserRegistered    = "user.registered"
	TypeDocumentUploaded  = "document.uploaded"
	TypeDocumentVersioned = "document.versioned"
	TypeDocumentShared    = "document.shared"
	TypeDocumentDeleted   = "document.deleted"
	TypeBlogPublished     = "blog.published"
	TypeBlogDeleted       = "blog.deleted"
)

// Event is the JSON document written to the events topic.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Subject    string                 `json:"subject"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Publisher emits domain events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
