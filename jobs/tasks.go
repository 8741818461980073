package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyEmail delivers a stored notification by e-mail.
	TaskNotifyEmail = "notify:email"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NotifyEmailPayload describes a notification to mail out.
type NotifyEmailPayload struct {
	NotificationID int64  `json:"notification_id"`
	RecipientID    int64  `json:"recipient_id"`
	To             string `json:"to"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Message        string `json:"message"`
}

// NewNotifyEmailTask constructs an Asynq task.
func NewNotifyEmailTask(payload NotifyEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyEmail, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task scheduled by cron.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
