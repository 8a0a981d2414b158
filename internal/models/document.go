package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Document share expiry options, in hours.
const (
	ShareExpiryDay  = 24
	ShareExpiryWeek = 168
)

// PreviewExpiry bounds preview links, which are not recorded on the document.
const PreviewExpiry = time.Hour

// Document is a stored file in the documents registry. Path always names the current version's binary.
type Document struct {
	ID         string      `db:"id" json:"id"`
	Name       string      `db:"name" json:"name"`
	Path       string      `db:"path" json:"path"`
	Category   string      `db:"category" json:"category"`
	Size       int64       `db:"size" json:"size"`
	Type       string      `db:"type" json:"type"`
	Version    int         `db:"version" json:"version"`
	UploadedAt time.Time   `db:"uploaded_at" json:"uploadedAt"`
	SharedWith ShareGrants `db:"shared_with" json:"sharedWith"`
}

// ShareGrant records one issued share link.
type ShareGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Path      string    `json:"path"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// ShareGrants is stored as a JSONB array.
type ShareGrants []ShareGrant

// Value implements driver.Valuer.
func (g ShareGrants) Value() (driver.Value, error) {
	if g == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g)
}

// Scan implements sql.Scanner.
func (g *ShareGrants) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = ShareGrants{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported share grants type %T", src)
	}
	if len(raw) == 0 {
		*g = ShareGrants{}
		return nil
	}
	return json.Unmarshal(raw, g)
}

// LatestActiveExpiry returns the latest expiry among grants for path that are still valid at now.
func (g ShareGrants) LatestActiveExpiry(path string, now time.Time) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, grant := range g {
		if grant.Path != path || !grant.ExpiresAt.After(now) {
			continue
		}
		if !found || grant.ExpiresAt.After(latest) {
			latest = grant.ExpiresAt
			found = true
		}
	}
	return latest, found
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Category string
	Query    string
}
