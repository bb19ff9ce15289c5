package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feedgate/feedgate/internal/app"
	"github.com/feedgate/feedgate/internal/shared"
	"github.com/feedgate/feedgate/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := shared.NewSessionRegistry(pool)
	scanJob := jobs.NewDuplicateItemScanJob(pool, logger)
	cleanupJob := jobs.NewSessionCleanupJob(registry, logger)

	scanTask, err := jobs.NewDuplicateItemScanTask(jobs.DuplicateItemScanPayload{})
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewSessionCleanupTask(jobs.SessionCleanupPayload{
		RetentionHours: int(cfg.SessionRetention.Hours()),
	})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDuplicateItemScan, Handler: scanJob.Handle},
			{Type: jobs.TaskSessionCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: scanTask},
			{Spec: "30 3 * * *", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
