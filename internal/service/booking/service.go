package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"slotkeeper/backend/internal/availability"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/eventmanager"
	"slotkeeper/backend/internal/identity"
	"slotkeeper/backend/internal/store"
)

// BusySource reports busy time. Invalidate is called after a provider
// accepted a write so later checks do not see stale busy lists.
type BusySource interface {
	Busy(ctx context.Context, integrations []domain.Integration, start, end time.Time) []domain.BusyInterval
	Invalidate(ctx context.Context, integrations []domain.Integration)
}

type Deps struct {
	Profiles    store.ProfileStore
	Credentials store.CredentialStore
	Bookings    store.BookingRepository
	Notifier    store.NotificationSink
	Busy        BusySource
	Providers   eventmanager.ProviderLookup
}

type Service struct {
	profiles    store.ProfileStore
	credentials store.CredentialStore
	bookings    store.BookingRepository
	notifier    store.NotificationSink
	busy        BusySource
	providers   eventmanager.ProviderLookup
	coordinator *Coordinator
	now         func() time.Time
	root        *slog.Logger
	log         *slog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(deps Deps, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		profiles:    deps.Profiles,
		credentials: deps.Credentials,
		bookings:    deps.Bookings,
		notifier:    deps.Notifier,
		busy:        deps.Busy,
		providers:   deps.Providers,
		coordinator: NewCoordinator(deps.Bookings, log),
		now:         time.Now,
		root:        log,
		log:         log.With(slog.String("component", "booking")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Request struct {
	Username    string
	EventTypeID int64
	Start       time.Time
	End         time.Time
	Name        string
	Email       string
	TimeZone    string
	Notes       string
	Location    string
}

// Outcome is a stored booking plus what each provider did for it.
type Outcome struct {
	Booking domain.Booking
	Results []domain.ProviderResult
}

func (s *Service) BookSlot(ctx context.Context, req Request) (Outcome, error) {
	log := s.log.With(slog.String("user", req.Username))

	p, err := s.prepare(ctx, req, log)
	if err != nil {
		return Outcome{}, err
	}

	results := eventmanager.New(s.providers, p.integrations, s.root.With(slog.String("user", req.Username))).Create(ctx, p.event)
	s.invalidateBusy(ctx, p.integrations, results)
	if eventmanager.AggregateFailed(results) {
		log.Error("booking rejected by every provider", slog.Int("providers", len(results)))
		e := newError(CodeAllProvidersFailed, "booking failed with every calendar and video provider", nil)
		e.Results = results
		return Outcome{}, e
	}

	refs := make([]domain.BookingReference, 0, len(results))
	for _, r := range results {
		if r.Success && r.ExternalEventID != "" {
			refs = append(refs, domain.BookingReference{ProviderID: r.ProviderID, ExternalEventID: r.ExternalEventID})
		}
	}

	record, err := s.record(ctx, p, results, refs)
	if err != nil {
		return Outcome{}, withResults(err, results)
	}

	// Remote events created above stay in place if this write fails.
	saved, err := s.bookings.Create(ctx, record)
	if err != nil {
		log.Error("save booking failed", slog.String("uid", record.UID), slog.Any("err", err))
		return Outcome{}, withResults(persistenceError(err), results)
	}

	log.Info("booking created", slog.String("uid", saved.UID), slog.Int("references", len(saved.References)))
	return Outcome{Booking: saved, Results: results}, nil
}

func (s *Service) RescheduleSlot(ctx context.Context, existingUID string, req Request) (Outcome, error) {
	existingUID = strings.TrimSpace(existingUID)
	if existingUID == "" {
		return Outcome{}, validationError("reschedule_uid is required")
	}
	log := s.log.With(slog.String("user", req.Username), slog.String("reschedule_uid", existingUID))

	p, err := s.prepare(ctx, req, log)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.coordinator.Reschedule(ctx, existingUID, Replacement{
		OwnerID: p.user.ID,
		Event:   p.event,
		Updater: eventmanager.New(s.providers, p.integrations, s.root.With(slog.String("user", req.Username))),
		Build: func(ctx context.Context, _ domain.Booking, results []domain.ProviderResult, refs []domain.BookingReference) (domain.Booking, error) {
			return s.record(ctx, p, results, refs)
		},
	})
	s.invalidateBusy(ctx, p.integrations, res.Results)
	if err != nil {
		return Outcome{Results: res.Results}, err
	}

	log.Info("booking rescheduled", slog.String("uid", res.Booking.UID))
	return Outcome{Booking: res.Booking, Results: res.Results}, nil
}

// CancelSlot removes the remote events of one of username's bookings and
// marks it cancelled. The record itself is kept.
func (s *Service) CancelSlot(ctx context.Context, username, uid string) (Outcome, error) {
	username = strings.TrimSpace(username)
	uid = strings.TrimSpace(uid)
	if username == "" {
		return Outcome{}, validationError("user is required")
	}
	if uid == "" {
		return Outcome{}, validationError("uid is required")
	}
	log := s.log.With(slog.String("user", username), slog.String("uid", uid))

	user, err := s.profiles.FindUser(ctx, username)
	if err != nil {
		return Outcome{}, err
	}
	b, err := s.bookings.FindByUID(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return Outcome{}, newError(CodeBookingNotFound, "the booking does not exist", err)
	}
	if err != nil {
		return Outcome{}, err
	}
	if b.UserID != user.ID {
		log.Warn("cancel of a booking owned by another user", slog.Int64("owner_id", b.UserID))
		return Outcome{}, newError(CodeBookingNotFound, "the booking does not exist", nil)
	}
	if b.Status == domain.BookingStatusCancelled {
		return Outcome{Booking: b}, nil
	}

	integrations, err := s.credentials.ListIntegrations(ctx, b.UserID)
	if err != nil {
		return Outcome{}, err
	}
	results := eventmanager.New(s.providers, integrations, s.root.With(slog.String("uid", uid))).Delete(ctx, b.References)
	s.invalidateBusy(ctx, integrations, results)
	if eventmanager.AggregateFailed(results) {
		log.Error("cancellation rejected by every provider", slog.Int("providers", len(results)))
		e := newError(CodeAllProvidersFailed, "cancellation failed with every calendar and video provider", nil)
		e.Results = results
		return Outcome{}, e
	}

	saved, err := s.bookings.UpdateStatus(ctx, uid, domain.BookingStatusCancelled)
	if err != nil {
		return Outcome{}, withResults(persistenceError(err), results)
	}
	log.Info("booking cancelled", slog.Int("providers", len(results)))
	return Outcome{Booking: saved, Results: results}, nil
}

func (s *Service) invalidateBusy(ctx context.Context, integrations []domain.Integration, results []domain.ProviderResult) {
	for _, r := range results {
		if r.Success {
			s.busy.Invalidate(ctx, integrations)
			return
		}
	}
}

// prepared is everything known about a request once it has passed every
// gate; nothing remote has been written yet.
type prepared struct {
	req          Request
	user         domain.User
	eventType    domain.EventType
	integrations []domain.Integration
	event        domain.CalendarEvent
}

func (s *Service) prepare(ctx context.Context, req Request, log *slog.Logger) (prepared, error) {
	req, err := validate(req)
	if err != nil {
		return prepared{}, err
	}

	if req.Start.Before(s.now()) {
		log.Debug("slot in the past", slog.Time("start", req.Start))
		return prepared{}, newError(CodeSlotInPast, "attempting to book a slot in the past", nil)
	}

	user, err := s.profiles.FindUser(ctx, req.Username)
	if err != nil {
		return prepared{}, err
	}
	et, err := s.profiles.FindEventType(ctx, user.ID, req.EventTypeID)
	if err != nil {
		return prepared{}, err
	}

	integrations, err := s.credentials.ListIntegrations(ctx, user.ID)
	if err != nil {
		return prepared{}, err
	}

	windowStart, windowEnd := busyWindow(req.Start, req.End)
	busy := s.busy.Busy(ctx, integrations, windowStart, windowEnd)
	slot := domain.CandidateSlot{Start: req.Start, DurationMinutes: et.Length}
	if !availability.IsAvailable(busy, slot) {
		log.Debug("slot conflicts with busy time", slog.Time("start", req.Start), slog.Int("busy", len(busy)))
		return prepared{}, newError(CodeAvailabilityConflict, hostName(user)+" is unavailable at this time", nil)
	}

	out, err := availability.IsOutOfBounds(req.Start, et.Period(user.TimeZone), s.now())
	if err != nil {
		log.Warn("ignoring malformed booking period", slog.Int64("event_type_id", et.ID), slog.Any("err", err))
		out = false
	}
	if out {
		log.Debug("slot outside booking period", slog.Time("start", req.Start))
		return prepared{}, newError(CodePeriodOutOfBounds, "the requested date is outside the booking window", nil)
	}

	return prepared{
		req:          req,
		user:         user,
		eventType:    et,
		integrations: integrations,
		event:        buildEvent(user, et, req),
	}, nil
}

// record derives the uid and assembles the booking row. Bookings made without
// any provider get their confirmation sent here, before anything is stored.
func (s *Service) record(ctx context.Context, p prepared, results []domain.ProviderResult, refs []domain.BookingReference) (domain.Booking, error) {
	uid, err := identity.DeriveUID(results, p.event)
	if err != nil {
		return domain.Booking{}, err
	}

	if len(results) == 0 {
		if err := s.notifier.SendBookingConfirmation(ctx, p.event, uid); err != nil {
			s.log.Error("booking confirmation failed", slog.String("uid", uid), slog.Any("err", err))
			return domain.Booking{}, newError(CodeNotificationFailed, "the booking confirmation could not be sent", err)
		}
	}

	attendees := make([]domain.Attendee, 0, len(p.event.Attendees))
	for _, a := range p.event.Attendees {
		attendees = append(attendees, domain.Attendee{Email: a.Email, Name: a.Name, TimeZone: a.TimeZone})
	}

	return domain.Booking{
		UID:         uid,
		UserID:      p.user.ID,
		EventTypeID: p.eventType.ID,
		Title:       p.event.Title,
		Description: p.event.Description,
		Location:    p.req.Location,
		StartTime:   p.event.StartTime,
		EndTime:     p.event.EndTime,
		Status:      domain.BookingStatusAccepted,
		Attendees:   attendees,
		References:  refs,
	}, nil
}

func validate(req Request) (Request, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.TimeZone = strings.TrimSpace(req.TimeZone)
	req.Location = strings.TrimSpace(req.Location)

	if req.Username == "" {
		return req, validationError("user is required")
	}
	if req.EventTypeID <= 0 {
		return req, validationError("event_type_id is required")
	}
	if req.Name == "" {
		return req, validationError("name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return req, validationError("email is invalid")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return req, validationError("start and end are required")
	}
	if !req.End.After(req.Start) {
		return req, validationError("end must be after start")
	}
	if req.TimeZone != "" {
		if _, err := time.LoadLocation(req.TimeZone); err != nil {
			return req, validationError("time_zone is invalid")
		}
	}
	return req, nil
}

func buildEvent(user domain.User, et domain.EventType, req Request) domain.CalendarEvent {
	evt := domain.CalendarEvent{
		Type:        et.Title,
		Title:       eventName(et, req.Name),
		Description: req.Notes,
		StartTime:   req.Start.UTC(),
		EndTime:     req.End.UTC(),
		Organizer:   user.Person(),
		Attendees:   []domain.AttendeeInfo{{Email: req.Email, Name: req.Name, TimeZone: req.TimeZone}},
	}
	if domain.IsIntegrationLocation(req.Location) {
		evt.Extension = eventmanager.BuildExtension(req.Location)
	} else {
		evt.Location = req.Location
	}
	return evt
}

func eventName(et domain.EventType, attendee string) string {
	if et.EventName != "" {
		return strings.ReplaceAll(et.EventName, "{USER}", attendee)
	}
	return et.Title + " with " + attendee
}

// busyWindow covers the whole UTC days the request touches.
func busyWindow(start, end time.Time) (time.Time, time.Time) {
	s := start.UTC()
	e := end.UTC()
	from := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	return from, to
}

func hostName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
