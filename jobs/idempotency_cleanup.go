package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cserv-ai/cserv/internal/jobs"
)

// KeyPurger removes expired idempotency keys.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges keys older than Retention.
type IdempotencyCleanupJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	purged, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("idempotency cleanup", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	j.Metrics.AddPurged(purged)
	if j.Logger != nil {
		j.Logger.Info("idempotency cleanup", slog.Int64("purged", purged), slog.Duration("retention", retention))
	}
	return tracker.End(nil)
}
