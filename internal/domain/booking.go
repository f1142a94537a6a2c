package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is the local record of an accepted request. UID never changes once
// assigned; attendees and references are owned by the booking and go with it.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	ID          uuid.UUID          `bun:"id,pk,type:uuid"`
	UID         string             `bun:"uid,notnull,unique"`
	UserID      int64              `bun:"user_id,notnull"`
	EventTypeID int64              `bun:"event_type_id,nullzero"`
	Title       string             `bun:"title,notnull"`
	Description string             `bun:"description"`
	Location    string             `bun:"location"`
	StartTime   time.Time          `bun:"start_time,notnull"`
	EndTime     time.Time          `bun:"end_time,notnull"`
	Status      BookingStatus      `bun:"status,notnull"`
	Attendees   []Attendee         `bun:"rel:has-many,join:id=booking_id"`
	References  []BookingReference `bun:"rel:has-many,join:id=booking_id"`
	CreatedAt   time.Time          `bun:"created_at,notnull"`
	UpdatedAt   time.Time          `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

type Attendee struct {
	bun.BaseModel `bun:"table:attendees,alias:a"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	BookingID uuid.UUID `bun:"booking_id,notnull,type:uuid"`
	Email     string    `bun:"email,notnull"`
	Name      string    `bun:"name,notnull"`
	TimeZone  string    `bun:"time_zone,notnull"`
}

// Info strips the row identity off an attendee.
func (a Attendee) Info() AttendeeInfo {
	return AttendeeInfo{Email: a.Email, Name: a.Name, TimeZone: a.TimeZone}
}

// BookingReference links a booking to the event one provider holds for it.
type BookingReference struct {
	bun.BaseModel `bun:"table:booking_references,alias:r"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	BookingID       uuid.UUID `bun:"booking_id,notnull,type:uuid"`
	ProviderID      string    `bun:"provider_id,notnull"`
	ExternalEventID string    `bun:"external_event_id,notnull"`
}
