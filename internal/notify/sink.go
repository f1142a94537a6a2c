package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"slotkeeper/backend/internal/domain"
)

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Sink queues booking confirmations for the worker to deliver.
type Sink struct {
	client Enqueuer
	queue  string
	log    *slog.Logger
}

func NewSink(client Enqueuer, queue string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{client: client, queue: queue, log: log.With(slog.String("component", "notify"))}
}

func (s *Sink) SendBookingConfirmation(ctx context.Context, evt domain.CalendarEvent, uid string) error {
	task, opts, err := NewConfirmationTask(evt, uid, s.queue)
	if err != nil {
		return fmt.Errorf("build confirmation task: %w", err)
	}
	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		s.log.Debug("confirmation already queued", slog.String("uid", uid))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue confirmation: %w", err)
	}
	s.log.Info("confirmation queued", slog.String("uid", uid), slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return nil
}
