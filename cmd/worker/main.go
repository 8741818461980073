package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cserv-ai/cserv/internal/app"
	jobmetrics "github.com/cserv-ai/cserv/internal/jobs"
	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := jobmetrics.NewMetrics(nil)

	emailJob := &jobs.NotifyEmailJob{
		Mailer:  jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom),
		Logger:  logger,
		Metrics: metrics,
	}
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskNotifyEmail, Handler: emailJob.Handle},
	}
	var cron []jobs.CronRegistration

	// Idempotency keys only live in Postgres; the memory backend keeps them in
	// the API process.
	if cfg.StorageBackend == app.BackendPostgres {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		cleanupJob := &jobs.IdempotencyCleanupJob{
			Store:     shared.NewIdempotencyStore(pool),
			Retention: cfg.IdempotencyRetention,
			Logger:    logger,
			Metrics:   metrics,
		}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle})
		cron = append(cron, jobs.CronRegistration{
			Spec:    "30 3 * * *",
			Task:    jobs.NewIdempotencyCleanupTask(),
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Unique(time.Hour)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    cfg.Location(),
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("handlers", len(handlers)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
