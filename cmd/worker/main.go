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

	"github.com/meridian-books/meridian/internal/app"
	"github.com/meridian-books/meridian/internal/approvals"
	"github.com/meridian-books/meridian/internal/hashchain"
	jobmetrics "github.com/meridian-books/meridian/internal/jobs"
	"github.com/meridian-books/meridian/internal/observability"
	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/platform/db"
	"github.com/meridian-books/meridian/internal/shared"
	"github.com/meridian-books/meridian/internal/transactions"
	"github.com/meridian-books/meridian/jobs"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.TestMode {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clock := shared.SystemClock{}
	locker := cache.NewLocker(redisClient, cfg.LockTTL)
	dispatcher := shared.LogDispatcher{Logger: logger}
	activity := shared.EventingSink{Sink: shared.NewActivityLogger(pool), Dispatcher: dispatcher}
	metrics := observability.NewMetrics()

	txRepo := transactions.NewRepository(pool)
	chain := hashchain.NewService(hashchain.NewRepository(pool), locker, clock, logger).
		WithMetrics(metrics)
	approvalSvc := approvals.NewService(approvals.NewRepository(pool), chain,
		transactions.Hasher{Repo: txRepo}, dispatcher, activity, clock, logger, cfg.ApprovalTTL)

	handlers := &jobs.Handlers{
		Approvals:  approvalSvc,
		Chain:      chain,
		Dispatcher: dispatcher,
		Metrics:    jobmetrics.NewMetrics(metrics.Registerer()),
		Logger:     logger,
	}

	sweepTask, err := jobs.NewApprovalExpiryTask(jobs.ApprovalExpiryPayload{Limit: cfg.ApprovalSweepBatch})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewChainIntegrityTask(jobs.ChainIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Domain:    handlers,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ApprovalSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IntegrityCheckCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler()}
	go func() {
		logger.Info("worker metrics listening", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
