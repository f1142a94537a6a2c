package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/booking"
	"slotkeeper/backend/internal/store"
)

const errorDomain = "slotkeeper"

type BookingsServer struct {
	svc bookingsService
	log *slog.Logger
}

type bookingsService interface {
	BookSlot(ctx context.Context, req booking.Request) (booking.Outcome, error)
	RescheduleSlot(ctx context.Context, existingUID string, req booking.Request) (booking.Outcome, error)
	CancelSlot(ctx context.Context, username, uid string) (booking.Outcome, error)
}

func NewBookingsServer(svc bookingsService, log *slog.Logger) *BookingsServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.bookings")),
	}
}

func (s *BookingsServer) BookSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "BookSlot"))

	req, err := bookingRequest(in)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	log = log.With(slog.String("user", req.Username))

	out, err := s.svc.BookSlot(ctx, req)
	if err != nil {
		return nil, s.statusError(log, err)
	}
	log.Info("slot booked", slog.String("uid", out.Booking.UID), slog.Time("start_time", out.Booking.StartTime))
	return outcomeStruct(out)
}

func (s *BookingsServer) RescheduleSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RescheduleSlot"))

	req, err := bookingRequest(in)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	uid := stringField(in, "reschedule_uid")
	log = log.With(slog.String("user", req.Username), slog.String("uid", uid))

	out, err := s.svc.RescheduleSlot(ctx, uid, req)
	if err != nil {
		return nil, s.statusError(log, err)
	}
	log.Info("slot rescheduled", slog.String("new_uid", out.Booking.UID), slog.Time("start_time", out.Booking.StartTime))
	return outcomeStruct(out)
}

func (s *BookingsServer) CancelSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CancelSlot"))

	if in == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	username := stringField(in, "username")
	uid := stringField(in, "uid")
	log = log.With(slog.String("user", username), slog.String("uid", uid))

	out, err := s.svc.CancelSlot(ctx, username, uid)
	if err != nil {
		return nil, s.statusError(log, err)
	}
	log.Info("slot cancelled", slog.Int("providers", len(out.Results)))
	return outcomeStruct(out)
}

func (s *BookingsServer) statusError(log *slog.Logger, err error) error {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, vErr.Error())
	}

	var bErr *booking.Error
	if errors.As(err, &bErr) {
		code := codeFor(bErr.Code)
		if code == codes.Unavailable {
			log.Error("booking failed", slog.String("reason", string(bErr.Code)), slog.Any("err", err))
		} else {
			log.Info("booking rejected", slog.String("reason", string(bErr.Code)), slog.Any("err", err))
		}
		return withReason(status.New(code, bErr.Message), string(bErr.Code), bErr.Results)
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("lookup failed", slog.Any("err", err))
		return status.Error(codes.NotFound, "user or event type not found")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", slog.Any("err", err))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}

	log.Error("booking operation failed", slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}

func codeFor(c booking.Code) codes.Code {
	switch c {
	case booking.CodeSlotInPast, booking.CodeAvailabilityConflict, booking.CodePeriodOutOfBounds:
		return codes.FailedPrecondition
	case booking.CodeBookingNotFound:
		return codes.NotFound
	case booking.CodePersistenceConflict:
		return codes.AlreadyExists
	case booking.CodeAllProvidersFailed, booking.CodeNotificationFailed:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

func withReason(st *status.Status, reason string, results []domain.ProviderResult) error {
	info := &errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}
	if failed := failedProviders(results); failed != "" {
		info.Metadata = map[string]string{"failed_providers": failed}
	}
	detailed, err := st.WithDetails(info)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

func failedProviders(results []domain.ProviderResult) string {
	var ids []string
	for _, r := range results {
		if !r.Success {
			ids = append(ids, r.ProviderID)
		}
	}
	return strings.Join(ids, ",")
}

func bookingRequest(in *structpb.Struct) (booking.Request, error) {
	if in == nil {
		return booking.Request{}, errors.New("request is required")
	}
	startRaw, endRaw := stringField(in, "start_time"), stringField(in, "end_time")
	if startRaw == "" || endRaw == "" {
		return booking.Request{}, errors.New("start_time and end_time are required")
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return booking.Request{}, errors.New("start_time must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return booking.Request{}, errors.New("end_time must be RFC 3339")
	}

	return booking.Request{
		Username:    stringField(in, "username"),
		EventTypeID: int64(in.GetFields()["event_type_id"].GetNumberValue()),
		Start:       start,
		End:         end,
		Name:        stringField(in, "name"),
		Email:       stringField(in, "email"),
		TimeZone:    stringField(in, "time_zone"),
		Notes:       stringField(in, "notes"),
		Location:    stringField(in, "location"),
	}, nil
}

func stringField(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

func outcomeStruct(out booking.Outcome) (*structpb.Struct, error) {
	results := make([]any, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, map[string]any{
			"provider_id":       r.ProviderID,
			"success":           r.Success,
			"external_event_id": r.ExternalEventID,
			"error":             r.Reason,
		})
	}

	m := map[string]any{"results": results}
	if out.Booking.UID != "" {
		m["booking"] = bookingMap(out.Booking)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return st, nil
}

func bookingMap(b domain.Booking) map[string]any {
	attendees := make([]any, 0, len(b.Attendees))
	for _, a := range b.Attendees {
		attendees = append(attendees, map[string]any{
			"name":      a.Name,
			"email":     a.Email,
			"time_zone": a.TimeZone,
		})
	}
	refs := make([]any, 0, len(b.References))
	for _, r := range b.References {
		refs = append(refs, map[string]any{
			"provider_id":       r.ProviderID,
			"external_event_id": r.ExternalEventID,
		})
	}
	return map[string]any{
		"uid":         b.UID,
		"title":       b.Title,
		"description": b.Description,
		"location":    b.Location,
		"status":      string(b.Status),
		"start_time":  b.StartTime.UTC().Format(time.RFC3339),
		"end_time":    b.EndTime.UTC().Format(time.RFC3339),
		"attendees":   attendees,
		"references":  refs,
	}
}
