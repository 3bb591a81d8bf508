package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/lab-group/labdash/internal/app"
	"github.com/lab-group/labdash/internal/observability"
	"github.com/lab-group/labdash/internal/odoo"
	"github.com/lab-group/labdash/internal/platform/cache"
	"github.com/lab-group/labdash/internal/snapshot"
	"github.com/lab-group/labdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var loader snapshot.Loader
	switch {
	case cfg.ERPConfigured():
		client := odoo.NewClient(odoo.Config{
			URL:     cfg.OdooURL,
			DB:      cfg.OdooDB,
			UID:     cfg.OdooUID,
			APIKey:  cfg.OdooAPIKey,
			Timeout: cfg.OdooTimeout,
		})
		loader = snapshot.NewERPLoader(client, logger)
	case cfg.SnapshotPath != "":
		loader = snapshot.NewFileLoader(cfg.SnapshotPath)
	default:
		logger.Error("no snapshot source configured, set ODOO_API_KEY and ODOO_DB or SNAPSHOT_PATH")
		os.Exit(1)
	}

	store := snapshot.NewStore(redisClient, cfg.SnapshotTTL)
	metrics := observability.NewMetrics()
	refresher := jobs.NewSnapshotRefresher(loader, store, metrics, logger)

	refreshTask, err := jobs.NewSnapshotRefreshTask(jobs.SnapshotRefreshPayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSnapshotRefresh, Handler: refresher.Handle},
		},
		Cron: []jobs.CronRegistration{
			{
				Spec:    fmt.Sprintf("@every %s", cfg.SnapshotRefresh),
				Task:    refreshTask,
				Options: []asynq.Option{asynq.MaxRetry(3)},
			},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting snapshot worker",
		slog.String("interval", cfg.SnapshotRefresh.String()))

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
