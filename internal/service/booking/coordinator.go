package booking

import (
	"context"
	"errors"
	"log/slog"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/eventmanager"
	"slotkeeper/backend/internal/store"
)

type RescheduleState string

const (
	StateRequested       RescheduleState = "requested"
	StateFound           RescheduleState = "found"
	StateNotFound        RescheduleState = "not_found"
	StateUpdateAttempted RescheduleState = "update_attempted"
	StateFailed          RescheduleState = "failed"
	StateReplacing       RescheduleState = "replacing"
	StateReplaced        RescheduleState = "replaced"
)

type Updater interface {
	Update(ctx context.Context, evt domain.CalendarEvent, refs []domain.BookingReference) []domain.ProviderResult
}

// Replacement describes the booking that should take an old one's place.
// Only a booking owned by OwnerID can be replaced. Build receives the provider
// results and the references carried over from the old booking, and returns
// the record to insert.
type Replacement struct {
	OwnerID int64
	Event   domain.CalendarEvent
	Updater Updater
	Build   func(ctx context.Context, old domain.Booking, results []domain.ProviderResult, refs []domain.BookingReference) (domain.Booking, error)
}

type RescheduleResult struct {
	State   RescheduleState
	Old     domain.Booking
	Booking domain.Booking
	Results []domain.ProviderResult
}

// Coordinator moves a booking to new event content. The old record is only
// removed together with the insert of its replacement; on any failure it is
// left exactly as it was.
type Coordinator struct {
	bookings store.BookingRepository
	log      *slog.Logger
}

func NewCoordinator(bookings store.BookingRepository, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{bookings: bookings, log: log.With(slog.String("component", "reschedule"))}
}

func (c *Coordinator) Reschedule(ctx context.Context, oldUID string, r Replacement) (RescheduleResult, error) {
	res := RescheduleResult{State: StateRequested}
	log := c.log.With(slog.String("uid", oldUID))
	move := func(s RescheduleState) {
		log.Debug("reschedule state", slog.String("from", string(res.State)), slog.String("to", string(s)))
		res.State = s
	}

	old, err := c.bookings.FindByUID(ctx, oldUID)
	if errors.Is(err, store.ErrNotFound) {
		move(StateNotFound)
		return res, newError(CodeBookingNotFound, "the booking to reschedule does not exist", err)
	}
	if err != nil {
		move(StateFailed)
		return res, err
	}
	if old.UserID != r.OwnerID {
		log.Warn("reschedule of a booking owned by another user", slog.Int64("owner_id", old.UserID), slog.Int64("user_id", r.OwnerID))
		move(StateNotFound)
		return res, newError(CodeBookingNotFound, "the booking to reschedule does not exist", nil)
	}
	move(StateFound)
	res.Old = old

	move(StateUpdateAttempted)
	results := r.Updater.Update(ctx, r.Event, old.References)
	res.Results = results
	if eventmanager.AggregateFailed(results) {
		move(StateFailed)
		log.Error("reschedule rejected by every provider", slog.Int("providers", len(results)))
		e := newError(CodeAllProvidersFailed, "rescheduling failed with every calendar and video provider", nil)
		e.Results = results
		return res, e
	}

	move(StateReplacing)
	next, err := r.Build(ctx, old, results, carryReferences(old.References, results))
	if err != nil {
		move(StateFailed)
		return res, withResults(err, results)
	}
	saved, err := c.bookings.Replace(ctx, old.UID, next)
	if err != nil {
		move(StateFailed)
		log.Error("replace booking failed", slog.Any("err", err))
		return res, withResults(persistenceError(err), results)
	}
	move(StateReplaced)
	res.Booking = saved
	return res, nil
}

// carryReferences keeps every reference of the old booking, points it at the
// id a provider reported after the update, and adds references for providers
// that created a fresh event.
func carryReferences(old []domain.BookingReference, results []domain.ProviderResult) []domain.BookingReference {
	refs := make([]domain.BookingReference, 0, len(old)+len(results))
	for _, ref := range old {
		refs = append(refs, domain.BookingReference{ProviderID: ref.ProviderID, ExternalEventID: ref.ExternalEventID})
	}
	for _, r := range results {
		if !r.Success || r.ExternalEventID == "" {
			continue
		}
		matched := false
		for i := range refs {
			if refs[i].ProviderID == r.ProviderID {
				refs[i].ExternalEventID = r.ExternalEventID
				matched = true
				break
			}
		}
		if !matched {
			refs = append(refs, domain.BookingReference{ProviderID: r.ProviderID, ExternalEventID: r.ExternalEventID})
		}
	}
	return refs
}

func persistenceError(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return newError(CodePersistenceConflict, "a booking with this identifier already exists", err)
	}
	return err
}

func withResults(err error, results []domain.ProviderResult) error {
	var bErr *Error
	if errors.As(err, &bErr) && bErr.Results == nil {
		bErr.Results = results
	}
	return err
}
