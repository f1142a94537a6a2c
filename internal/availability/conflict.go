package availability

import (
	"time"

	"slotkeeper/backend/internal/domain"
)

// IsAvailable reports whether slot can be booked against busy.
//
// A slot is rejected when, for any busy interval [s,e), its start shares the
// clock time (hour and minute) of s on any date, its start or end lies
// strictly inside (s,e), or s lies strictly inside the slot. Clock times are
// compared in the slot start's location.
//
// Intervals with a zero start or end carry no usable information and are
// skipped, so a malformed report never blocks a booking.
func IsAvailable(busy []domain.BusyInterval, slot domain.CandidateSlot) bool {
	start := slot.Start
	end := slot.End()

	for _, b := range busy {
		if b.Start.IsZero() || b.End.IsZero() {
			continue
		}
		if sameClockMinute(start, b.Start) {
			return false
		}
		if strictlyBetween(start, b.Start, b.End) {
			return false
		}
		if strictlyBetween(end, b.Start, b.End) {
			return false
		}
		if strictlyBetween(b.Start, start, end) {
			return false
		}
	}
	return true
}

func sameClockMinute(slot, busy time.Time) bool {
	busy = busy.In(slot.Location())
	return slot.Hour() == busy.Hour() && slot.Minute() == busy.Minute()
}

// strictlyBetween accepts its bounds in either order.
func strictlyBetween(t, a, b time.Time) bool {
	if b.Before(a) {
		a, b = b, a
	}
	return t.After(a) && t.Before(b)
}
