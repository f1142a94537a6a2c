package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type ProviderKind string

const (
	ProviderKindCalendar ProviderKind = "calendar"
	ProviderKindVideo    ProviderKind = "video"
)

// Provider ids as stored on credentials and booking references.
const (
	ProviderGoogleCalendar = "google_calendar"
	ProviderZoomVideo      = "zoom_video"
)

// Integration is one external account configured by a user. The engine only
// ever reads it.
type Integration struct {
	ID                int64
	Kind              ProviderKind
	ProviderID        string
	Credential        []byte
	SelectedCalendars []string
}

// ProviderResult is the outcome of one create/update/delete call against one
// provider. ExternalEventID, Error and Reason are empty when not applicable.
// Error is the raw cause and stays in logs; Reason is the short
// classification safe to hand to clients.
type ProviderResult struct {
	ProviderID      string
	Success         bool
	ExternalEventID string
	Error           string
	Reason          string
}

// Credential is the stored form of an Integration; SealedKey holds the
// encrypted provider credential.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	ID                int64        `bun:"id,pk,autoincrement"`
	UserID            int64        `bun:"user_id,notnull"`
	Kind              ProviderKind `bun:"kind,notnull"`
	ProviderID        string       `bun:"provider_id,notnull"`
	SealedKey         []byte       `bun:"sealed_key,notnull"`
	SelectedCalendars []string     `bun:"selected_calendars,array"`
	CreatedAt         time.Time    `bun:"created_at,notnull"`
	UpdatedAt         time.Time    `bun:"updated_at,notnull"`
}

func (c *Credential) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}
