package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/provider"
	"slotkeeper/backend/internal/service/booking"
	"slotkeeper/backend/internal/store"
)

type fakeBookingsService struct {
	bookFn       func(ctx context.Context, req booking.Request) (booking.Outcome, error)
	rescheduleFn func(ctx context.Context, existingUID string, req booking.Request) (booking.Outcome, error)
	cancelFn     func(ctx context.Context, username, uid string) (booking.Outcome, error)
}

func (f *fakeBookingsService) BookSlot(ctx context.Context, req booking.Request) (booking.Outcome, error) {
	if f.bookFn == nil {
		panic("BookSlot not configured")
	}
	return f.bookFn(ctx, req)
}

func (f *fakeBookingsService) RescheduleSlot(ctx context.Context, existingUID string, req booking.Request) (booking.Outcome, error) {
	if f.rescheduleFn == nil {
		panic("RescheduleSlot not configured")
	}
	return f.rescheduleFn(ctx, existingUID, req)
}

func (f *fakeBookingsService) CancelSlot(ctx context.Context, username, uid string) (booking.Outcome, error) {
	if f.cancelFn == nil {
		panic("CancelSlot not configured")
	}
	return f.cancelFn(ctx, username, uid)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return st
}

func validRequest(t *testing.T) *structpb.Struct {
	return mustStruct(t, map[string]any{
		"username":      "host",
		"event_type_id": 3,
		"start_time":    "2026-03-02T10:00:00Z",
		"end_time":      "2026-03-02T10:30:00Z",
		"name":          "Ada",
		"email":         "ada@example.com",
		"time_zone":     "Europe/London",
		"location":      domain.LocationZoom,
	})
}

func TestBookSlot_DecodesRequest(t *testing.T) {
	var got booking.Request
	srv := NewBookingsServer(&fakeBookingsService{
		bookFn: func(ctx context.Context, req booking.Request) (booking.Outcome, error) {
			got = req
			return booking.Outcome{
				Booking: domain.Booking{UID: "uid-1", Status: domain.BookingStatusAccepted, StartTime: req.Start, EndTime: req.End},
				Results: []domain.ProviderResult{{ProviderID: domain.ProviderZoomVideo, Success: true, ExternalEventID: "42"}},
			}, nil
		},
	}, discardLogger())

	resp, err := srv.BookSlot(context.Background(), validRequest(t))
	if err != nil {
		t.Fatalf("BookSlot error: %v", err)
	}
	if got.Username != "host" || got.EventTypeID != 3 || got.Email != "ada@example.com" {
		t.Fatalf("request = %+v", got)
	}
	if !got.Start.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", got.Start)
	}
	if got.Location != domain.LocationZoom {
		t.Fatalf("location = %q, want %q", got.Location, domain.LocationZoom)
	}

	b := resp.GetFields()["booking"].GetStructValue()
	if uid := b.GetFields()["uid"].GetStringValue(); uid != "uid-1" {
		t.Fatalf("uid = %q, want uid-1", uid)
	}
	results := resp.GetFields()["results"].GetListValue().GetValues()
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
}

func TestBookSlot_ResultsCarryReasonNotRawError(t *testing.T) {
	srv := NewBookingsServer(&fakeBookingsService{
		bookFn: func(ctx context.Context, req booking.Request) (booking.Outcome, error) {
			return booking.Outcome{
				Booking: domain.Booking{UID: "uid-1"},
				Results: []domain.ProviderResult{
					{ProviderID: domain.ProviderZoomVideo, Success: true, ExternalEventID: "42"},
					{
						ProviderID: domain.ProviderGoogleCalendar,
						Error:      `googleapi: Error 403: token ya29.secret rejected for host@example.com`,
						Reason:     provider.ReasonUnauthorized,
					},
				},
			}, nil
		},
	}, discardLogger())

	resp, err := srv.BookSlot(context.Background(), validRequest(t))
	if err != nil {
		t.Fatalf("BookSlot error: %v", err)
	}
	results := resp.GetFields()["results"].GetListValue().GetValues()
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	failed := results[1].GetStructValue().GetFields()
	if got := failed["error"].GetStringValue(); got != provider.ReasonUnauthorized {
		t.Fatalf("error = %q, want %q", got, provider.ReasonUnauthorized)
	}
	if got := results[0].GetStructValue().GetFields()["error"].GetStringValue(); got != "" {
		t.Fatalf("success error = %q, want empty", got)
	}
	if strings.Contains(resp.String(), "ya29") {
		t.Fatalf("raw provider error reached the response: %s", resp.String())
	}
}

func TestBookSlot_RejectsBadTimes(t *testing.T) {
	srv := NewBookingsServer(&fakeBookingsService{}, discardLogger())

	tests := []struct {
		name string
		in   map[string]any
	}{
		{name: "missing", in: map[string]any{"username": "host"}},
		{name: "not rfc3339", in: map[string]any{"start_time": "tomorrow", "end_time": "2026-03-02T10:30:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.BookSlot(context.Background(), mustStruct(t, tt.in))
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
			}
		})
	}
}

func TestStatusError_MapsCodes(t *testing.T) {
	tests := []struct {
		err        error
		want       codes.Code
		wantReason string
	}{
		{err: &booking.ValidationError{}, want: codes.InvalidArgument},
		{err: &booking.Error{Code: booking.CodeSlotInPast}, want: codes.FailedPrecondition, wantReason: "SlotInPast"},
		{err: &booking.Error{Code: booking.CodeAvailabilityConflict}, want: codes.FailedPrecondition, wantReason: "AvailabilityConflict"},
		{err: &booking.Error{Code: booking.CodePeriodOutOfBounds}, want: codes.FailedPrecondition, wantReason: "PeriodOutOfBounds"},
		{err: &booking.Error{Code: booking.CodeAllProvidersFailed}, want: codes.Unavailable, wantReason: "AllProvidersFailed"},
		{err: &booking.Error{Code: booking.CodeBookingNotFound}, want: codes.NotFound, wantReason: "BookingNotFound"},
		{err: &booking.Error{Code: booking.CodePersistenceConflict}, want: codes.AlreadyExists, wantReason: "PersistenceConflict"},
		{err: &booking.Error{Code: booking.CodeNotificationFailed}, want: codes.Unavailable, wantReason: "NotificationFailed"},
		{err: fmt.Errorf("find user: %w", store.ErrNotFound), want: codes.NotFound},
		{err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{err: errors.New("boom"), want: codes.Internal},
	}

	srv := NewBookingsServer(&fakeBookingsService{}, discardLogger())
	for _, tt := range tests {
		t.Run(tt.want.String()+"/"+tt.wantReason, func(t *testing.T) {
			err := srv.statusError(srv.log, tt.err)
			st := status.Convert(err)
			if st.Code() != tt.want {
				t.Fatalf("code = %s, want %s", st.Code(), tt.want)
			}
			if tt.wantReason == "" {
				return
			}
			if got := reasonOf(st); got != tt.wantReason {
				t.Fatalf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestStatusError_HidesCause(t *testing.T) {
	srv := NewBookingsServer(&fakeBookingsService{}, discardLogger())
	err := srv.statusError(srv.log, &booking.Error{
		Code:    booking.CodePersistenceConflict,
		Message: "a booking with this identity already exists",
		Err:     errors.New(`duplicate key value violates unique constraint "bookings_uid_key"`),
	})
	if msg := status.Convert(err).Message(); msg != "a booking with this identity already exists" {
		t.Fatalf("message = %q", msg)
	}
}

func TestStatusError_ListsFailedProviders(t *testing.T) {
	srv := NewBookingsServer(&fakeBookingsService{}, discardLogger())
	err := srv.statusError(srv.log, &booking.Error{
		Code: booking.CodeAllProvidersFailed,
		Results: []domain.ProviderResult{
			{ProviderID: domain.ProviderGoogleCalendar, Error: "401"},
			{ProviderID: domain.ProviderZoomVideo, Error: "timeout"},
		},
	})
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			want := domain.ProviderGoogleCalendar + "," + domain.ProviderZoomVideo
			if got := info.GetMetadata()["failed_providers"]; got != want {
				t.Fatalf("failed_providers = %q, want %q", got, want)
			}
			return
		}
	}
	t.Fatalf("no ErrorInfo detail")
}

func reasonOf(st *status.Status) string {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

func TestRescheduleAndCancelOverConnection(t *testing.T) {
	var gotReschedule, gotCancel, gotCancelUser string
	svc := &fakeBookingsService{
		rescheduleFn: func(ctx context.Context, existingUID string, req booking.Request) (booking.Outcome, error) {
			gotReschedule = existingUID
			return booking.Outcome{Booking: domain.Booking{UID: "uid-2"}}, nil
		},
		cancelFn: func(ctx context.Context, username, uid string) (booking.Outcome, error) {
			gotCancelUser, gotCancel = username, uid
			return booking.Outcome{}, &booking.Error{Code: booking.CodeBookingNotFound, Message: "the booking does not exist"}
		},
	}

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterBookingsServiceServer(server, NewBookingsServer(svc, discardLogger()))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	client := NewBookingsClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := validRequest(t)
	in.Fields["reschedule_uid"] = structpb.NewStringValue("uid-1")
	resp, err := client.RescheduleSlot(ctx, in)
	if err != nil {
		t.Fatalf("RescheduleSlot error: %v", err)
	}
	if gotReschedule != "uid-1" {
		t.Fatalf("reschedule uid = %q, want uid-1", gotReschedule)
	}
	if uid := resp.GetFields()["booking"].GetStructValue().GetFields()["uid"].GetStringValue(); uid != "uid-2" {
		t.Fatalf("new uid = %q, want uid-2", uid)
	}

	_, err = client.CancelSlot(ctx, mustStruct(t, map[string]any{"username": "host", "uid": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.NotFound)
	}
	if gotCancel != "missing" || gotCancelUser != "host" {
		t.Fatalf("cancel = %q/%q, want host/missing", gotCancelUser, gotCancel)
	}
	if reason := reasonOf(status.Convert(err)); reason != "BookingNotFound" {
		t.Fatalf("reason = %q, want BookingNotFound", reason)
	}
}
