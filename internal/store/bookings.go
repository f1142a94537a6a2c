package store

import (
	"context"

	"slotkeeper/backend/internal/domain"
)

// BookingRepository persists bookings together with their attendees and
// provider references.
type BookingRepository interface {
	FindByUID(ctx context.Context, uid string) (domain.Booking, error)
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)
	// Replace deletes old and everything it owns, then inserts next, in one
	// transaction.
	Replace(ctx context.Context, oldUID string, next domain.Booking) (domain.Booking, error)
	UpdateStatus(ctx context.Context, uid string, status domain.BookingStatus) (domain.Booking, error)
	DeleteCascade(ctx context.Context, uid string) error
}

type CredentialStore interface {
	ListIntegrations(ctx context.Context, userID int64) ([]domain.Integration, error)
}

type ProfileStore interface {
	FindUser(ctx context.Context, username string) (domain.User, error)
	FindEventType(ctx context.Context, userID, eventTypeID int64) (domain.EventType, error)
}

// NotificationSink delivers the confirmation for bookings made without any
// integration.
type NotificationSink interface {
	SendBookingConfirmation(ctx context.Context, evt domain.CalendarEvent, uid string) error
}
