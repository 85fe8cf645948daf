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

	"github.com/ir-comercio/estoque-api/internal/app"
	"github.com/ir-comercio/estoque-api/internal/auth"
	"github.com/ir-comercio/estoque-api/internal/estoque"
	"github.com/ir-comercio/estoque-api/internal/observability"
	"github.com/ir-comercio/estoque-api/internal/platform/cache"
	"github.com/ir-comercio/estoque-api/internal/platform/db"
	"github.com/ir-comercio/estoque-api/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The session cache is an optimisation; the API stays up without it.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, session verdicts will not be cached", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	repo := estoque.NewRepository(pool)
	registry := estoque.NewTableRegistry(pool)
	service := estoque.NewService(repo, registry, logger, metrics)
	estoqueHandler := estoque.NewHandler(logger, service)

	portal := auth.NewPortalClient(cfg.PortalURL, cfg.PortalTimeout)
	sessionAuth := auth.NewValidator(portal, redisClient, cfg.SessionCacheTTL, logger)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	access := app.NewAccessCounter(logger, time.Hour, ctx.Done())

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		EstoqueHandler: estoqueHandler,
		SessionAuth:    sessionAuth,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		Access:         access,
		Pool:           pool,
		Redis:          redisClient,
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
