package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"slotkeeper/backend/internal/domain"
)

type fakeEnqueuer struct {
	enqueueFn func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.enqueueFn == nil {
		panic("EnqueueContext not configured")
	}
	return f.enqueueFn(ctx, task, opts...)
}

type mailerFunc func(ctx context.Context, evt domain.CalendarEvent, uid string) error

func (f mailerFunc) SendConfirmation(ctx context.Context, evt domain.CalendarEvent, uid string) error {
	return f(ctx, evt, uid)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() domain.CalendarEvent {
	return domain.CalendarEvent{
		Title:     "Intro with Ada",
		StartTime: time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC),
		Attendees: []domain.AttendeeInfo{{Email: "ada@example.com", Name: "Ada"}},
	}
}

func TestSinkEnqueuesConfirmation(t *testing.T) {
	var gotType string
	var gotPayload ConfirmationPayload
	var gotOpts []asynq.Option
	sink := NewSink(&fakeEnqueuer{
		enqueueFn: func(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
			gotType = task.Type()
			gotOpts = opts
			if err := json.Unmarshal(task.Payload(), &gotPayload); err != nil {
				t.Fatalf("payload: %v", err)
			}
			return &asynq.TaskInfo{ID: "confirmation:uid-1", Queue: "notifications"}, nil
		},
	}, "notifications", quietLogger())

	if err := sink.SendBookingConfirmation(context.Background(), sampleEvent(), "uid-1"); err != nil {
		t.Fatalf("SendBookingConfirmation err = %v", err)
	}
	if gotType != TypeBookingConfirmation {
		t.Fatalf("type = %q, want %q", gotType, TypeBookingConfirmation)
	}
	if gotPayload.UID != "uid-1" || gotPayload.Event.Title != "Intro with Ada" {
		t.Fatalf("payload = %+v", gotPayload)
	}

	var taskID, queue string
	for _, o := range gotOpts {
		switch o.Type() {
		case asynq.TaskIDOpt:
			taskID = o.Value().(string)
		case asynq.QueueOpt:
			queue = o.Value().(string)
		}
	}
	if taskID != "confirmation:uid-1" {
		t.Fatalf("task id = %q", taskID)
	}
	if queue != "notifications" {
		t.Fatalf("queue = %q", queue)
	}
}

func TestSinkTreatsDuplicateAsSent(t *testing.T) {
	sink := NewSink(&fakeEnqueuer{
		enqueueFn: func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
			return nil, asynq.ErrTaskIDConflict
		},
	}, "", quietLogger())

	if err := sink.SendBookingConfirmation(context.Background(), sampleEvent(), "uid-1"); err != nil {
		t.Fatalf("SendBookingConfirmation err = %v, want nil", err)
	}
}

func TestSinkReportsEnqueueFailure(t *testing.T) {
	down := errors.New("redis down")
	sink := NewSink(&fakeEnqueuer{
		enqueueFn: func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
			return nil, down
		},
	}, "", quietLogger())

	if err := sink.SendBookingConfirmation(context.Background(), sampleEvent(), "uid-1"); !errors.Is(err, down) {
		t.Fatalf("err = %v, want %v", err, down)
	}
}

func TestHandleConfirmation(t *testing.T) {
	task, _, err := NewConfirmationTask(sampleEvent(), "uid-9", "")
	if err != nil {
		t.Fatalf("NewConfirmationTask err = %v", err)
	}

	var gotUID string
	h := handleConfirmation(mailerFunc(func(_ context.Context, _ domain.CalendarEvent, uid string) error {
		gotUID = uid
		return nil
	}), quietLogger())
	if err := h(context.Background(), task); err != nil {
		t.Fatalf("handler err = %v", err)
	}
	if gotUID != "uid-9" {
		t.Fatalf("uid = %q, want uid-9", gotUID)
	}

	bad := asynq.NewTask(TypeBookingConfirmation, []byte("{"))
	if err := h(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload err = %v, want SkipRetry", err)
	}
}
