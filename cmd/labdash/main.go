package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/lab-group/labdash/internal/app"
	"github.com/lab-group/labdash/internal/close"
	closehttp "github.com/lab-group/labdash/internal/close/http"
	"github.com/lab-group/labdash/internal/dashboard"
	dashhttp "github.com/lab-group/labdash/internal/dashboard/http"
	"github.com/lab-group/labdash/internal/observability"
	"github.com/lab-group/labdash/internal/platform/cache"
	"github.com/lab-group/labdash/internal/shared"
	"github.com/lab-group/labdash/internal/snapshot"
	"github.com/lab-group/labdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	sessionManager := shared.NewSessionManager(redisClient, "labdash_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	store := snapshot.NewStore(redisClient, cfg.SnapshotTTL)
	metrics := observability.NewMetrics()

	if cfg.ERPConfigured() {
		// The worker owns the refresh cadence; request one immediately on
		// startup.
		jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			logger.Warn("init job client", slog.Any("error", err))
		} else {
			if _, err := jobClient.EnqueueSnapshotRefresh(ctx, jobs.SnapshotRefreshPayload{Reason: "startup"}); err != nil {
				logger.Warn("enqueue snapshot refresh", slog.Any("error", err))
			}
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}
	} else if cfg.SnapshotPath != "" {
		loader := snapshot.NewFileLoader(cfg.SnapshotPath)
		snap, err := loader.Load(ctx)
		if err != nil {
			logger.Warn("load snapshot file", slog.String("path", cfg.SnapshotPath), slog.Any("error", err))
		} else if err := store.Publish(ctx, snap); err != nil {
			logger.Warn("publish snapshot", slog.Any("error", err))
		} else {
			metrics.ObserveSnapshot(snap.GeneratedAt)
			logger.Info("snapshot loaded from file",
				slog.String("path", cfg.SnapshotPath),
				slog.Int("entities", len(snap.Entities)))
		}
	} else {
		logger.Warn("no snapshot source configured, dashboard starts empty")
	}

	gate := close.NewGate(cfg.ClosePassword)
	if !gate.Configured() {
		logger.Warn("close password not set, month-end close views stay locked")
	}
	reporter := close.NewReporter(store, close.NewChecker())
	closeHandler := closehttp.NewHandler(logger, gate, reporter)

	dashboardService := dashboard.NewService(store)
	dashboardHandler := dashhttp.NewHandler(logger, dashboardService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		DashboardHandler: dashboardHandler,
		CloseHandler:     closeHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
}
