package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vaultry/vaultry/internal/app"
	"github.com/vaultry/vaultry/internal/platform/cache"
	"github.com/vaultry/vaultry/internal/platform/db"
	"github.com/vaultry/vaultry/internal/rbac"
	"github.com/vaultry/vaultry/jobs"
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

	rbacStore := rbac.NewRepository(pool)
	rbacCache := rbac.NewDecisionCache(redisClient, cfg.RbacCacheTTL)
	registry := rbac.NewRegistry(rbacStore, rbac.DefaultCatalog())
	seeder := rbac.NewSeeder(rbacStore, registry, rbacCache, cfg.RbacSeedBatchSize, logger)
	seedJob := jobs.NewRbacSeedJob(seeder, logger)

	seedTask, err := jobs.NewRbacSeedTask(jobs.RbacSeedPayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build seed task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRbacSeed, Handler: seedJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: seedTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
