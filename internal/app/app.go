// Package app wires configuration to use cases, transports and recurring jobs.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/classifier"
	"ArticlesClassifier/internal/classifier/fewshot"
	"ArticlesClassifier/internal/classifier/zeroshot"
	"ArticlesClassifier/internal/config"
	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/infrastructure/artifact"
	"ArticlesClassifier/internal/infrastructure/llm"
	"ArticlesClassifier/internal/infrastructure/ml"
	"ArticlesClassifier/internal/infrastructure/parser"
	"ArticlesClassifier/internal/infrastructure/scheduler"
	"ArticlesClassifier/internal/infrastructure/storage"
	"ArticlesClassifier/internal/infrastructure/telegram"
	"ArticlesClassifier/internal/logging"
	"ArticlesClassifier/internal/metrics"
	"ArticlesClassifier/internal/ports"
	"ArticlesClassifier/internal/retry"
	"ArticlesClassifier/internal/scanner"
	"ArticlesClassifier/internal/transport/httpapi"
	"ArticlesClassifier/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	version string
	db      *sql.DB

	Classification *usecase.ClassificationService
	Batch          *usecase.BatchProcessor
	Metrics        *metrics.Engine
	Scan           *usecase.ScanPipeline
	Artifacts      *artifact.FS

	jobs *usecase.Scheduler
}

// New builds every component from cfg. Nothing talks to a classifier backend yet;
// backends are constructed on first use or by Warmup.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, version string) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, version: version}

	history, snapshots, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	labels := cfg.Labels()
	a.Metrics = metrics.NewEngine(history, labels,
		metrics.WithSnapshotStore(snapshots),
		metrics.WithLogger(baseLogger.With("component", "metrics")))

	registry := classifier.NewRegistry(cfg.Classifier.WarmupTimeout, baseLogger.With("component", "registry"))
	a.registerClassifiers(registry, labels)

	a.Classification, err = usecase.NewClassificationService(usecase.ClassificationDeps{
		Registry:     registry,
		Backend:      cfg.Classifier.Type,
		History:      history,
		ProbeTimeout: cfg.Classifier.ProbeTimeout,
		Logger:       baseLogger.With("component", "classification"),
	})
	if err != nil {
		return nil, a.closeOnError(err)
	}

	a.Artifacts, err = artifact.NewFS(cfg.Batch.OutputDir)
	if err != nil {
		return nil, a.closeOnError(errors.Wrap(err, "prepare artifact directory"))
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		return nil, a.closeOnError(err)
	}

	a.Batch = usecase.NewBatchProcessor(usecase.BatchDeps{
		Classifier: a.Classification,
		Artifacts:  a.Artifacts,
		Notifier:   notifier,
		Workers:    cfg.Batch.Workers,
		Logger:     baseLogger.With("component", "batch"),
	})

	scanners := scanner.NewRegistry(parser.NewArxivScanner(nil, baseLogger.With("component", "scanner.arxiv")))
	source := parser.NewStrategySource(scanners, cfg.Sites, baseLogger.With("component", "source"))
	a.Scan = usecase.NewScanPipeline(usecase.ScanDeps{
		Source: source,
		Batch:  a.Batch,
		Logger: baseLogger.With("component", "scan"),
	})

	jobs, err := a.buildJobs()
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.jobs = usecase.NewScheduler(baseLogger.With("component", "scheduler"), jobs...)

	return a, nil
}

func (a *Application) openStorage(ctx context.Context) (ports.PredictionHistory, ports.SnapshotStore, error) {
	cfg := a.cfg.Storage
	if cfg.Driver == config.DriverMemory {
		var snapshots ports.SnapshotStore
		if cfg.SnapshotFile != "" {
			snapshots = storage.NewFileSnapshotStore(cfg.SnapshotFile)
		}
		return metrics.NewMemoryHistory(), snapshots, nil
	}

	dialect, err := storage.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.DSN, a.logger.With("component", "storage"))
	if err != nil {
		return nil, nil, err
	}
	a.db = db
	store := storage.NewSQLStore(db, dialect)
	return store, store, nil
}

func (a *Application) registerClassifiers(registry *classifier.Registry, labels []string) {
	cfg := a.cfg
	maxChars := cfg.Classifier.MaxInputChars

	registry.Register(domain.ClassifierZeroShot, func() (ports.Classifier, error) {
		var model ports.ScoringModel
		switch cfg.ZeroShot.Backend {
		case config.ScorerHTTP:
			model = ml.NewClient(cfg.ZeroShot.InferenceURL, cfg.ZeroShot.APIKey, cfg.ZeroShot.Model, cfg.ZeroShot.Timeout)
		default:
			model = ml.NewLexiconModel(nil, 0)
		}
		return zeroshot.New(model, zeroshot.Config{
			Labels:        labels,
			Threshold:     cfg.ZeroShot.Threshold,
			MaxConcurrent: cfg.ZeroShot.MaxConcurrent,
			MaxInputChars: maxChars,
		}, a.logger.With("component", "classifier.zero_shot")), nil
	})

	registry.Register(domain.ClassifierFewShot, func() (ports.Classifier, error) {
		gen, err := a.buildGenerator()
		if err != nil {
			return nil, err
		}
		policy := retry.DefaultConfig()
		policy.MaxRetries = cfg.FewShot.MaxRetries
		if cfg.FewShot.RetryBaseDelay > 0 {
			policy.BaseDelay = cfg.FewShot.RetryBaseDelay
		}
		return fewshot.New(gen, fewshot.Config{
			Labels:            labels,
			MaxExamples:       cfg.FewShot.MaxExamples,
			RequestTimeout:    cfg.FewShot.RequestTimeout,
			Retry:             policy,
			AssignedScore:     cfg.FewShot.AssignedScore,
			RequestsPerMinute: cfg.FewShot.RequestsPerMinute,
			MaxInputChars:     maxChars,
		}, a.logger.With("component", "classifier.few_shot")), nil
	})
}

func (a *Application) buildGenerator() (ports.Generator, error) {
	fs := a.cfg.FewShot
	switch fs.Provider {
	case config.ProviderOpenAI:
		client, err := llm.NewChatGPTClient(llm.ChatGPTConfig{
			BaseURL:      fs.BaseURL,
			APIKey:       fs.APIKey,
			Model:        fs.Model,
			SystemPrompt: fs.SystemPrompt,
			Temperature:  fs.Temperature,
			MaxTokens:    fs.MaxTokens,
			Seed:         fs.Seed,
			Timeout:      fs.RequestTimeout,
		})
		if err != nil {
			return nil, errors.Mark(err, domain.ErrModelUnavailable)
		}
		return client, nil
	default:
		return llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:     fs.BaseURL,
			Model:       fs.Model,
			Temperature: fs.Temperature,
			TopP:        fs.TopP,
			MaxTokens:   fs.MaxTokens,
			Seed:        fs.Seed,
			Timeout:     fs.RequestTimeout,
		}), nil
	}
}

func (a *Application) buildNotifier() (ports.Notifier, error) {
	tg := a.cfg.Notifications.Telegram
	if !tg.Enabled() {
		return nil, nil
	}
	notifier, err := telegram.NewNotifier(tg.BotToken, tg.ChatID)
	if err != nil {
		return nil, errors.Wrap(err, "init telegram notifier")
	}
	return notifier, nil
}

func (a *Application) buildJobs() ([]usecase.Job, error) {
	var jobs []usecase.Job

	if a.cfg.Metrics.Schedule != "" {
		driver, err := scheduler.NewCronScheduler(a.cfg.Metrics.Schedule, scheduler.Options{
			Timezone: a.cfg.Scheduler.Timezone,
			Logger:   a.logger.With("component", "cron.metrics"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "metrics schedule")
		}
		jobs = append(jobs, usecase.Job{
			Name:   "metrics-refresh",
			Driver: driver,
			Run: func(ctx context.Context, _ time.Time) error {
				_, err := a.Metrics.Refresh(ctx)
				return err
			},
		})
	}

	if a.cfg.Scheduler.Enabled {
		driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, scheduler.Options{
			Timezone: a.cfg.Scheduler.Timezone,
			Logger:   a.logger.With("component", "cron.scan"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "scan schedule")
		}
		loc := a.cfg.Scheduler.Location()
		jobs = append(jobs, usecase.Job{
			Name:   "daily-scan",
			Driver: driver,
			Run: func(ctx context.Context, trigger time.Time) error {
				_, err := a.Scan.ProcessDay(ctx, trigger.In(loc))
				return err
			},
		})
	}
	return jobs, nil
}

// Handler exposes the HTTP surface.
func (a *Application) Handler() http.Handler {
	return httpapi.New(httpapi.Deps{
		Classifier:     a.Classification,
		Batch:          a.Batch,
		Metrics:        a.Metrics,
		Artifacts:      a.Artifacts,
		Logger:         a.logger.With("component", "http"),
		Version:        a.version,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
	}).Handler()
}

// Serve starts recurring jobs and the HTTP server and blocks until ctx is cancelled
// or the listener fails. Shutdown is bounded by the configured timeout.
func (a *Application) Serve(ctx context.Context) error {
	if a.cfg.Classifier.WarmupOnStart {
		if err := a.Classification.Warmup(ctx); err != nil {
			a.logger.Warn("warmup failed, classifier will load on first request", "error", err)
		}
	}

	if err := a.jobs.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr, "backend", a.Classification.Backend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = errors.Wrap(err, "http server")
		}
	}

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.CombineErrors(serveErr, errors.Wrap(err, "http shutdown"))
	}
	if err := a.jobs.Stop(shutdownCtx); err != nil {
		serveErr = errors.CombineErrors(serveErr, err)
	}
	a.logger.Info("http server stopped")
	return serveErr
}

// Close releases classifier instances and the database handle.
func (a *Application) Close() error {
	var errs error
	if a.Classification != nil {
		errs = errors.CombineErrors(errs, a.Classification.Close())
	}
	if a.db != nil {
		errs = errors.CombineErrors(errs, a.db.Close())
	}
	return errs
}

func (a *Application) closeOnError(err error) error {
	return errors.CombineErrors(err, a.Close())
}
