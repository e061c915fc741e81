package cli

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/config"
	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/database"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/integration/hubspot"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/mail"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/memstore"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/metrics"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/queue"
	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

// Store is a repository the health check can ping.
type Store interface {
	entity.Repository
	Ping(ctx context.Context) error
}

type AppOptions struct {
	// Broker connects to RabbitMQ when AMQP_URL is set.
	Broker bool
	// Migrate applies pending migrations after connecting.
	Migrate bool
}

// App is the wired object graph shared by the commands.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder

	DB    *sql.DB
	Store Store

	Broker   *queue.RabbitMQ
	Producer *queue.RabbitMQProducer

	Sync    *usecase.SyncUseCase
	Reports *usecase.ReportUseCase
}

func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts AppOptions) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.New(app.Registry)

	if err := app.openStore(ctx, opts.Migrate); err != nil {
		app.Close()
		return nil, err
	}

	source, err := app.buildSource()
	if err != nil {
		app.Close()
		return nil, err
	}

	var notifiers []usecase.RunNotifier
	if opts.Broker && cfg.AMQP.URL != "" {
		rmq, err := queue.NewRabbitMQ(cfg.AMQP.URL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Broker = rmq
		app.Producer = queue.NewProducer(rmq.Ch)
		notifiers = append(notifiers, app.Producer)
	}
	if cfg.Mail.Enabled() {
		notifiers = append(notifiers, mail.NewEmailSender(
			cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Pass, cfg.Mail.From, cfg.Mail.AlertTo,
		))
	}

	threshold := cfg.HighValueThreshold()
	app.Sync = usecase.NewSyncUseCase(
		source,
		usecase.NewTransformer(threshold),
		usecase.NewLoader(app.Store, threshold, logger),
		logger,
		usecase.WithConcurrentPhases(cfg.Sync.ConcurrentPhases),
		usecase.WithNotifiers(notifiers...),
		usecase.WithRecorder(app.Metrics),
	)
	app.Reports = usecase.NewReportUseCase(app.Store, threshold, logger)
	return app, nil
}

func (a *App) openStore(ctx context.Context, migrate bool) error {
	if a.Config.Database.Driver == config.DriverMemory {
		a.Store = memstore.New()
		return nil
	}

	db, err := database.NewDBConnection(ctx, a.Config.Database.Driver, a.Config.Database.DSN())
	if err != nil {
		return err
	}
	a.DB = db

	if migrate {
		database.SetMigrationLogger(a.Logger)
		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
	}
	a.Store = database.NewPostgresStore(db, a.Logger)
	return nil
}

func (a *App) buildSource() (usecase.Source, error) {
	src := a.Config.Source
	if a.Config.FixtureMode() {
		fixture, err := hubspot.LoadFixture(src.FixtureFile)
		if err != nil {
			return nil, eris.Wrap(err, "load fixture")
		}
		a.Logger.Info("source: fixture mode", zap.String("file", src.FixtureFile))
		return hubspot.NewExtractor(fixture, src.PageSize, a.Logger), nil
	}

	client := hubspot.NewClient(src.BaseURL, src.APIToken, src.Timeout, a.Logger,
		hubspot.WithRetryPolicy(hubspot.RetryPolicy{
			MaxAttempts:   src.MaxAttempts,
			InitialDelay:  src.RetryDelay,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2,
		}),
		hubspot.WithRequestObserver(a.Metrics),
	)
	return hubspot.NewExtractor(client, src.PageSize, a.Logger), nil
}

func (a *App) Close() {
	if a.Broker != nil {
		_ = a.Broker.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
