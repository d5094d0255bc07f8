package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/carewell-hms/carewell/internal/app"
	"github.com/carewell-hms/carewell/internal/auth"
	"github.com/carewell-hms/carewell/internal/observability"
	"github.com/carewell-hms/carewell/internal/platform/cache"
	"github.com/carewell-hms/carewell/internal/platform/db"
	"github.com/carewell-hms/carewell/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	rootCmd := &cobra.Command{
		Use:           "carewell",
		Short:         "Carewell HMS authorization API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCommand := serveCmd()
	rootCmd.RunE = serveCommand.RunE
	rootCmd.Flags().AddFlagSet(serveCommand.Flags())

	rootCmd.AddCommand(serveCommand)
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(authzCmd())
	rootCmd.AddCommand(tenantsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		code := exitCode(err)
		if code == 1 {
			slog.Default().Error("carewell", slog.Any("error", err))
		}
		os.Exit(code)
	}
}

// stack holds the infrastructure shared by the server and the admin commands.
type stack struct {
	cfg      *app.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	queue    *jobs.Client
	metrics  *observability.Metrics
	services *app.Services
}

func bootstrap(ctx context.Context) (*stack, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.Database())
	if err != nil {
		return nil, err
	}
	rt := &stack{cfg: cfg, logger: logger, pool: pool, metrics: observability.NewMetrics()}

	rt.redis, err = cache.New(ctx, cfg.Redis())
	if err != nil {
		if cfg.RBACCacheTTL > 0 || cfg.AuditSink == app.AuditSinkQueue {
			rt.close()
			return nil, err
		}
		logger.Warn("redis unavailable, continuing without it", slog.Any("error", err))
		rt.redis = nil
	}

	deps := app.ServiceDeps{Config: cfg, Logger: logger, Pool: pool, Redis: rt.redis, Metrics: rt.metrics}
	if cfg.AuditSink == app.AuditSinkQueue {
		rt.queue = jobs.NewClient(cfg.Queue())
		deps.Enqueuer = rt.queue
	}

	rt.services, err = app.NewServices(deps)
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *stack) close() {
	if rt.services != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rt.services.Emitter.Close(ctx); err != nil {
			rt.logger.Warn("audit emitter close", slog.Any("error", err))
		}
		cancel()
	}
	if rt.queue != nil {
		if err := rt.queue.Close(); err != nil {
			rt.logger.Warn("queue client close", slog.Any("error", err))
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	rt.pool.Close()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetBool("seed-catalog")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			return serve(ctx, stop, rt, seed)
		},
	}
	cmd.Flags().Bool("seed-catalog", true, "Register the compiled permission catalog before serving")
	return cmd
}

func serve(ctx context.Context, stop context.CancelFunc, rt *stack, seed bool) error {
	logger := rt.logger
	services := rt.services

	if seed {
		if err := services.Catalog.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed permission catalog: %w", err)
		}
	}
	if err := services.ValidateRoutes(ctx); err != nil {
		return fmt.Errorf("validate route permissions: %w", err)
	}

	inspector := asynq.NewInspector(rt.cfg.Queue())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	params := services.Handlers(logger)
	params.Config = rt.cfg
	params.Metrics = rt.metrics
	params.JobHandler = jobs.NewHandler(inspector, logger)
	params.Authenticator = auth.Middleware{
		Verifier:     services.Tokens,
		TenantHeader: rt.cfg.TenantHeader,
		Logger:       logger,
	}

	server := &http.Server{
		Addr:         rt.cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  rt.cfg.AppReadTimeout,
		WriteTimeout: rt.cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", rt.cfg.AppAddr), slog.String("audit_sink", rt.cfg.AuditSink))
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
	return nil
}
