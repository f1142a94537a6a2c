package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"slotkeeper/backend/internal/domain"
)

// Mailer delivers a confirmation to the attendees of evt.
type Mailer interface {
	SendConfirmation(ctx context.Context, evt domain.CalendarEvent, uid string) error
}

// NewMux routes confirmation tasks to m.
func NewMux(m Mailer, log *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingConfirmation, handleConfirmation(m, log))
	return mux
}

func handleConfirmation(m Mailer, log *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p ConfirmationPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode confirmation: %v: %w", err, asynq.SkipRetry)
		}
		if err := m.SendConfirmation(ctx, p.Event, p.UID); err != nil {
			log.Warn("confirmation delivery failed", slog.String("uid", p.UID), slog.Any("err", err))
			return err
		}
		return nil
	}
}

// LogMailer records confirmations in the log. Outbound mail is delivered by
// a separate system that tails these entries.
type LogMailer struct {
	Log *slog.Logger
}

func (l LogMailer) SendConfirmation(_ context.Context, evt domain.CalendarEvent, uid string) error {
	emails := make([]string, 0, len(evt.Attendees))
	for _, a := range evt.Attendees {
		emails = append(emails, a.Email)
	}
	l.Log.Info("booking confirmation",
		slog.String("uid", uid),
		slog.String("title", evt.Title),
		slog.Time("start", evt.StartTime),
		slog.String("organizer", evt.Organizer.Email),
		slog.Any("attendees", emails))
	return nil
}
