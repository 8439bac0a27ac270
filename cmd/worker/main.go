package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nvds/salesdesk/internal/app"
	"github.com/nvds/salesdesk/internal/billing"
	jobmetrics "github.com/nvds/salesdesk/internal/jobs"
	"github.com/nvds/salesdesk/internal/masterdata"
	"github.com/nvds/salesdesk/internal/platform/cache"
	"github.com/nvds/salesdesk/internal/platform/db"
	"github.com/nvds/salesdesk/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	billingRepo := billing.NewRepository(pool)
	masterdataRepo := masterdata.NewRepository(pool)
	metrics := jobmetrics.NewMetrics(nil)

	warmupHandler := jobs.NewLoanWarmupHandler(billingRepo, masterdataRepo, redisClient, cfg.LoanTTL, metrics, logger)
	cleanupHandler := jobs.NewSpoolCleanupHandler(cfg.ReceiptSpoolDir, cfg.ReceiptRetention, metrics, logger)

	warmupTask, err := jobs.NewLoanWarmupTask(jobs.LoanWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewSpoolCleanupTask()
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLoanWarmup, Handler: warmupHandler},
			{Type: jobs.TaskSpoolCleanup, Handler: cleanupHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 5 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
