package booking

import "slotkeeper/backend/internal/domain"

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Code is a stable, client-facing rejection reason.
type Code string

const (
	CodeSlotInPast           Code = "SlotInPast"
	CodeAvailabilityConflict Code = "AvailabilityConflict"
	CodePeriodOutOfBounds    Code = "PeriodOutOfBounds"
	CodeAllProvidersFailed   Code = "AllProvidersFailed"
	CodeBookingNotFound      Code = "BookingNotFound"
	CodePersistenceConflict  Code = "PersistenceConflict"
	CodeNotificationFailed   Code = "NotificationFailed"
)

// Error is a rejected booking operation. Message is safe to show to the
// requester; Err keeps the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
	// Results is set when providers were called before the rejection.
	Results []domain.ProviderResult
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}
