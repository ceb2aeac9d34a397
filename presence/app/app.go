// Package app wires configuration, storage and the presence services into
// one graph shared by the API server, the CLI and the lambda.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dbcore "axiapac.com/presence/core"
	"axiapac.com/presence/config"
	directory "axiapac.com/presence/directory/v1"
	"axiapac.com/presence/infrastructure/cache"
	"axiapac.com/presence/infrastructure/communication"
	"axiapac.com/presence/infrastructure/filesystem"
	"axiapac.com/presence/presence/core"
	"axiapac.com/presence/presence/metrics"
	"axiapac.com/presence/presence/report"
	"axiapac.com/presence/presence/store"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	// opens the badger session cache; only the API needs it
	WithSessions bool
	Registerer   prometheus.Registerer
	Now          core.Clock
}

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DM        *dbcore.DatabaseManager
	Store     *store.GormStore
	Sessions  *cache.Badger
	Publisher core.Publisher
	Offices   core.OfficeLocator
	Metrics   *metrics.Metrics
	Bucket    *filesystem.Bucket

	Broker       *core.Broker
	Orchestrator *core.Orchestrator
	Processor    *core.ResultProcessor
	Sampler      *core.Sampler
	Engine       *core.Engine
	Report       *report.Daily
}

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location()

	dsn, err := cfg.ResolveDSN(ctx, config.SSMClient)
	if err != nil {
		return nil, err
	}
	dm, err := dbcore.New(dsn, cfg.DBMaxConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	dm.LogLevel = dbcore.ParseLogLevel(cfg.DBLogLevel)
	if dm.DefaultSchema == "" {
		dm.DefaultSchema = cfg.DBSchema
	}

	a := &App{Config: cfg, Logger: logger, DM: dm, Store: store.New(dm, cfg.DBSchema)}
	if opts.Registerer != nil {
		a.Metrics = metrics.New(opts.Registerer)
	}

	a.Publisher, err = buildPublisher(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Offices, err = buildLocator(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.ReportBucket != "" {
		if a.Bucket, err = filesystem.ConnectBucket(ctx, cfg.ReportBucket); err != nil {
			a.Close()
			return nil, err
		}
	}

	if opts.WithSessions {
		a.Sessions, err = cache.Open(cache.Config{
			Path:       cfg.BadgerPath,
			InMemory:   cfg.BadgerInMemory,
			Logger:     logger,
			GCInterval: 10 * time.Minute,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Broker = core.NewBroker(a.Store, a.Sessions, cfg.SessionTTL, now, logger)
		a.Orchestrator = core.NewOrchestrator(a.Broker, a.Offices, a.Store, a.Publisher, loc, now, logger)
	}

	a.Processor = core.NewResultProcessor(a.Store, a.Publisher, cfg.ConfidenceThreshold, loc, now, logger)
	a.Sampler = core.NewSampler(a.Store, a.Offices, a.Publisher, nil, cfg.ProbeMaxJitter, loc, now, logger).
		WithCheckoutGrace(cfg.CheckoutGrace)
	a.Engine = a.newEngine(a.Store)
	a.Report = report.NewDaily(a.Store, loc)
	return a, nil
}

func (a *App) newEngine(st core.EngineStore) *core.Engine {
	rules := core.SweepRules{Location: a.Config.Location(), CheckoutGrace: a.Config.CheckoutGrace}
	return core.NewEngine(st, a.Publisher, rules, a.Config.SweepLookbackDays, a.Logger)
}

// StoreFor returns a store over another schema on the same server.
func (a *App) StoreFor(schema string) *store.GormStore {
	if schema == "" || schema == a.Config.DBSchema {
		return a.Store
	}
	return store.New(a.DM, schema)
}

// EngineFor returns a sweep engine over another schema on the same server.
func (a *App) EngineFor(schema string) *core.Engine {
	if schema == "" || schema == a.Config.DBSchema {
		return a.Engine
	}
	return a.newEngine(a.StoreFor(schema))
}

// buildPublisher always logs events. Slack and SES are added when configured.
func buildPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Publisher, error) {
	fanout := communication.Fanout{communication.LogPublisher{Logger: logger}}
	if cfg.SlackBotToken != "" {
		fanout = append(fanout, communication.NewSlack(cfg.SlackBotToken, communication.SlackOption{
			InfoChannelID:  cfg.SlackInfoChannel,
			ErrorChannelID: cfg.SlackErrorChannel,
		}))
	}
	if cfg.SESFrom != "" && len(cfg.AbsenceRecipients) > 0 {
		mailer, err := communication.ConnectMailer(ctx, cfg.SESFrom, cfg.AbsenceRecipients)
		if err != nil {
			return nil, err
		}
		fanout = append(fanout, communication.Only(mailer, core.TopicShiftAbsent))
	}
	return fanout, nil
}

func buildLocator(cfg *config.Config, logger *slog.Logger) (core.OfficeLocator, error) {
	if cfg.DirectoryURL == "" {
		return directory.NewFallbackLocator(nil, cfg.FallbackOffice(), cfg.DirectoryTimeout, logger), nil
	}
	secret, err := cfg.DirectorySecret()
	if err != nil {
		return nil, err
	}
	client := directory.NewDirectoryClient(cfg.DirectoryURL, secret)
	return directory.NewFallbackLocator(client.Employees, cfg.FallbackOffice(), cfg.DirectoryTimeout, logger), nil
}

// ReportToBucket uploads the workbook for day, or fails when no bucket is set.
func (a *App) ReportToBucket(ctx context.Context, day time.Time) error {
	if a.Bucket == nil {
		return errors.New("REPORT_BUCKET is not configured")
	}
	key, err := a.Report.Upload(ctx, day, a.Bucket)
	if err != nil {
		return err
	}
	a.Logger.Info("daily report uploaded", "bucket", a.Bucket.Name(), "key", key)
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Sessions != nil {
		errs = append(errs, a.Sessions.Close())
	}
	if a.DM != nil {
		errs = append(errs, a.DM.Close())
	}
	return errors.Join(errs...)
}
