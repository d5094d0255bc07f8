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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carewell-hms/carewell/internal/app"
	"github.com/carewell-hms/carewell/internal/audit"
	jobmetrics "github.com/carewell-hms/carewell/internal/jobs"
	"github.com/carewell-hms/carewell/internal/permissions"
	"github.com/carewell-hms/carewell/internal/platform/cache"
	"github.com/carewell-hms/carewell/internal/platform/db"
	"github.com/carewell-hms/carewell/internal/rbac"
	"github.com/carewell-hms/carewell/jobs"
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

	pool, err := db.New(ctx, cfg.Database())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	catalog := permissions.NewCatalog(permissions.NewRepository(pool))
	if cfg.RBACCacheTTL > 0 {
		// Catalog syncs must reach principals cached by the API processes.
		client, err := cache.New(ctx, cfg.Redis())
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		catalog.SetInvalidator(rbac.NewRedisCache(client, cfg.RBACCacheTTL, logger))
	}

	auditJob := jobs.NewAuditEventJob(audit.NewPGSink(pool), logger, metrics)
	catalogJob := jobs.NewCatalogSyncJob(catalog, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Queue(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: audit.TaskTypeAuthzEvent, Handler: auditJob.Handle},
			{Type: jobs.TaskCatalogSync, Handler: catalogJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: jobs.NewCatalogSyncTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
