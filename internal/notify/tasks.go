package notify

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"slotkeeper/backend/internal/domain"
)

const TypeBookingConfirmation = "booking:confirmation"

type ConfirmationPayload struct {
	UID   string               `json:"uid"`
	Event domain.CalendarEvent `json:"event"`
}

// NewConfirmationTask builds the task for one booking. The task id is derived
// from the uid so a repeated request does not queue a second mail.
func NewConfirmationTask(evt domain.CalendarEvent, uid, queue string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ConfirmationPayload{UID: uid, Event: evt})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingConfirmation, b)
	opts := []asynq.Option{
		asynq.TaskID("confirmation:" + uid),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	if queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}
	return task, opts, nil
}
