package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cserv-ai/cserv/internal/app"
	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/observability"
	"github.com/cserv-ai/cserv/internal/platform/cache"
	"github.com/cserv-ai/cserv/internal/platform/db"
	"github.com/cserv-ai/cserv/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var (
		stores app.Stores
		pool   *pgxpool.Pool
	)
	switch cfg.StorageBackend {
	case app.BackendMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		stores = app.NewMemoryStores(nil)
	default:
		pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.DBMaxConns})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.DBAutoMigrate {
			version, err := db.Migrate(ctx, cfg.PGDSN)
			if err != nil {
				logger.Error("migrate", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("schema migrated", slog.Any("version", version))
		}
		stores = app.NewPostgresStores(pool, logger)
	}

	if err := app.Seed(ctx, stores, 0, logger); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	application := app.Assemble(app.Deps{
		Config:     cfg,
		Logger:     logger,
		Stores:     stores,
		Redis:      redisClient,
		Deliverers: []notify.Deliverer{notify.NewRedisPublisher(redisClient), jobClient},
		Metrics:    metrics,
		Inspector:  inspector,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      application.Router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.StorageBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	application.Dispatcher.Wait()
}
