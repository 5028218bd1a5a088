// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"path"

	gcsclient "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"paper-archiver/internal/archive"
	"paper-archiver/internal/config"
	"paper-archiver/internal/download"
	collyfetcher "paper-archiver/internal/fetcher/colly"
	"paper-archiver/internal/id/uuid"
	"paper-archiver/internal/logging"
	"paper-archiver/internal/metrics"
	"paper-archiver/internal/notify"
	notifypubsub "paper-archiver/internal/notify/pubsub"
	"paper-archiver/internal/pipeline"
	"paper-archiver/internal/sink"
	"paper-archiver/internal/store"
	"paper-archiver/internal/store/drive"
	"paper-archiver/internal/store/gcs"
)

// App wires every service the archiver needs for one run.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	RunID    string
	Metrics  *metrics.Metrics
	Pipeline *pipeline.Pipeline

	closers []func() error
}

// New builds the full service graph from configuration. It fails fast if any
// critical collaborator cannot be initialized.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger := logging.ForRun(baseLogger, runID)

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		RunID:   runID,
		Metrics: m,
	}
	a.closers = append(a.closers, func() error { return baseLogger.Sync() })

	htmlPolicy, err := archive.NewRetryPolicy(cfg.HTTP.Backoff, cfg.HTTP.MaxAttempts, cfg.HTMLBackoff())
	if err != nil {
		return nil, fmt.Errorf("http retry policy: %w", err)
	}
	binaryPolicy, err := archive.NewRetryPolicy(cfg.Download.Backoff, cfg.Download.MaxAttempts, cfg.DownloadBackoff())
	if err != nil {
		return nil, fmt.Errorf("download retry policy: %w", err)
	}

	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.HTMLTimeout(),
	}, htmlPolicy, m, logger)

	downloader := download.New(download.Config{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.DownloadTimeout(),
	}, binaryPolicy, m, logger)

	st, err := a.buildStore(ctx, cfg, runID, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := a.buildNotifier(ctx, cfg, runID, logger)
	if err != nil {
		return nil, err
	}

	artifactSink := sink.New(st, notifier, m, sink.Config{
		CleanupAttempts: cfg.Pipeline.CleanupAttempts,
		CleanupDelay:    cfg.CleanupDelay(),
	}, logger)

	p, err := pipeline.New(pipeline.Config{
		BaseURL:       cfg.Source.BaseURL,
		MaxYears:      cfg.Source.MaxYears,
		Concurrency:   cfg.Pipeline.Concurrency,
		CourtesyDelay: cfg.CourtesyDelay(),
		ShutdownWait:  cfg.ShutdownWait(),
		WorkDir:       cfg.Pipeline.WorkDir,
	}, pages, downloader, artifactSink, m, logger)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	a.Pipeline = p
	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Provider {
	case "drive":
		logger.Info("using Google Drive store",
			zap.String("credentials", cfg.Store.Drive.CredentialsFile),
		)
		return drive.New(drive.Config{
			CredentialsFile: cfg.Store.Drive.CredentialsFile,
			TokensDir:       cfg.Store.Drive.TokensDir,
			CallbackPort:    cfg.Store.Drive.CallbackPort,
		}, logger), nil
	case "gcs":
		logger.Info("using GCS store", zap.String("bucket", cfg.Store.GCS.Bucket))
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		// Objects from one run share a run-ID prefix so a partial run can
		// be inspected or cleaned up as a unit.
		st, err := gcs.New(ctx, client, gcs.Config{
			Bucket: cfg.Store.GCS.Bucket,
			Prefix: path.Join(cfg.Store.GCS.Prefix, runID),
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		return st, nil
	case "noop":
		logger.Info("using no-op store, uploads will be discarded")
		return store.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}

func (a *App) buildNotifier(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger) (archive.Notifier, error) {
	switch cfg.Notify.Provider {
	case "pubsub":
		logger.Info("publishing completion events",
			zap.String("topic", cfg.Notify.TopicName),
		)
		pub, err := notifypubsub.New(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicName, runID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		return pub, nil
	case "noop":
		return notify.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Notify.Provider)
	}
}

// Run executes the pipeline to completion.
func (a *App) Run(ctx context.Context) error {
	return a.Pipeline.Run(ctx)
}

// Close releases every long-lived service in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close service", zap.Error(err))
		}
	}
}
