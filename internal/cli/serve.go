package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/handlers"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/middleware"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/server"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/queue"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/worker"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type ServeOptions struct {
	*RootOptions
	SkipStartupSync bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a startup sync, then serve reports, health and metrics",
		Long: `Run one sync at startup, then serve the analytics API on HTTP_PORT.
When SYNC_INTERVAL is set a sync also runs on that interval, and when
AMQP_URL is set sync requests are consumed from RabbitMQ.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipStartupSync, "skip-startup-sync", false, "do not run a sync before serving")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.Config
	logger := opts.Logger

	app, err := NewApp(ctx, cfg, logger, AppOptions{
		Broker:  true,
		Migrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "initialize", err)
	}
	defer app.Close()

	if !opts.SkipStartupSync {
		summary := app.Sync.Run(ctx)
		if !summary.Succeeded() {
			logger.Warn("serve: startup sync had failed phases", zap.Int("failed", len(summary.FailedPhases())))
		}
	}

	var broker handlers.BrokerState
	if app.Broker != nil {
		broker = app.Broker.Conn
	}

	router := server.NewRouter(server.Deps{
		Reports:  handlers.NewReportHandler(app.Reports, logger),
		Health:   handlers.NewHealthHandler(app.Store, broker, cfg.Source.Mode, Version),
		Sync:     handlers.NewSyncHandler(app.Sync, handlers.NewRateLimiter(ctx, 2, time.Minute), logger),
		Metrics:  middleware.NewHTTPMetrics(app.Registry),
		Gatherer: app.Registry,
		Logger:   logger,

		TrustProxy: cfg.HTTP.TrustProxy,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.HTTP.Port, router, logger)
	})

	if cfg.Sync.Interval > 0 {
		scheduler := worker.NewSyncScheduler(app.Sync, cfg.Sync.Interval, logger)
		g.Go(func() error {
			scheduler.Start(gctx)
			return nil
		})
	}

	if app.Broker != nil {
		w := queue.NewWorker(app.Broker.Ch, app.Sync, logger)
		g.Go(func() error {
			return w.Start(gctx, queue.RequestQueue)
		})
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "serve", err)
	}
	return nil
}
