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

	"github.com/nvds/salesdesk/internal/app"
	"github.com/nvds/salesdesk/internal/billing"
	"github.com/nvds/salesdesk/internal/masterdata"
	"github.com/nvds/salesdesk/internal/observability"
	"github.com/nvds/salesdesk/internal/platform/cache"
	"github.com/nvds/salesdesk/internal/platform/db"
	"github.com/nvds/salesdesk/internal/printing"
	"github.com/nvds/salesdesk/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The desk stays usable without Redis; only loan caching degrades.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, loan caching disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	renderer, err := printing.NewSpoolRenderer(cfg.ReceiptSpoolDir, logger)
	if err != nil {
		logger.Error("init receipt spool", slog.Any("error", err))
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(pool)
	store := billing.NewLoanCache(billingRepo, redisClient, cfg.LoanTTL)
	engine := billing.NewEngine(store, renderer, billing.EngineConfig{
		Logger:                 logger,
		PrintTimeout:           cfg.PrintTimeout,
		LegacyPrintedSelection: cfg.LegacyPrintedSelection,
	})
	if err := engine.Bootstrap(ctx); err != nil {
		logger.Error("bootstrap billing desk", slog.Any("error", err))
		os.Exit(1)
	}
	billingHandler := billing.NewHandler(logger, engine, metrics)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	var jobsHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Warn("init jobs client", slog.Any("error", err))
		} else {
			defer func() {
				if err := jobsClient.Close(); err != nil {
					logger.Warn("jobs client close", slog.Any("error", err))
				}
			}()
			jobsHandler = jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)
		}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		BillingHandler:    billingHandler,
		MasterDataHandler: masterdataHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("salesdesk listening", slog.String("addr", cfg.AppAddr))
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
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
