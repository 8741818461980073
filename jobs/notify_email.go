package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cserv-ai/cserv/internal/jobs"
)

// NotifyEmailJob mails notifications queued by the dispatcher.
type NotifyEmailJob struct {
	Mailer  Mailer
	AppName string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskNotifyEmail tasks.
func (j *NotifyEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("notify email: handler not configured")
	}
	var payload NotifyEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("notify email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return nil
	}

	tracker := j.Metrics.Track(TaskNotifyEmail)
	subject := fmt.Sprintf("[%s] %s", j.appName(), payload.Category)
	body := fmt.Sprintf("Hello %s,\n\n%s\n", payload.Name, payload.Message)
	err := j.Mailer.Send(ctx, payload.To, subject, body)
	if err != nil {
		j.logger().Warn("notify email: send",
			slog.Int64("notification_id", payload.NotificationID),
			slog.Int64("recipient_id", payload.RecipientID),
			slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *NotifyEmailJob) appName() string {
	if j.AppName == "" {
		return "C-Serv.AI"
	}
	return j.AppName
}

func (j *NotifyEmailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
