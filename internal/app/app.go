package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"GhibliScanner/internal/config"
	"GhibliScanner/internal/control"
	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/download"
	"GhibliScanner/internal/infrastructure/imaging"
	"GhibliScanner/internal/infrastructure/llm"
	"GhibliScanner/internal/infrastructure/parser"
	"GhibliScanner/internal/infrastructure/scheduler"
	"GhibliScanner/internal/infrastructure/storage"
	"GhibliScanner/internal/infrastructure/telegram"
	"GhibliScanner/internal/logging"
	"GhibliScanner/internal/ports"
	"GhibliScanner/internal/scanner"
	"GhibliScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store    ports.SettingsStore
	closers  []func() error
	surface  *control.Surface
	pipeline *usecase.Pipeline
	loader   *parser.Loader
	prober   ports.ImageProber
}

// Options overrides adapters that are otherwise built from configuration.
type Options struct {
	Store      ports.SettingsStore
	HTTPClient *http.Client
}

// New builds a runnable application and installs the default settings record.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	store := opts.Store
	if store == nil {
		var err error
		store, err = a.openStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	a.store = store

	if err := store.Install(ctx, cfg.Defaults.Settings()); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("install settings: %w", err)
	}

	model, err := newModelRegistry(cfg.Classifier).Resolve(cfg.Classifier.Backend)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if closer, ok := model.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Classifier.Timeout}
	}

	classifier := usecase.NewStyleClassifier(usecase.ClassifierDeps{
		Settings: store,
		Fetcher:  imaging.NewFetcher(client, cfg.Scanner.MaxImageBytes),
		Model:    model,
		Style:    cfg.Classifier.Style,
		Logger:   baseLogger.With("component", "classifier", "backend", model.Name()),
	})

	downloader := usecase.NewImageDownloader(
		store,
		download.NewFileHost(cfg.Download.RootDir, client),
		baseLogger.With("component", "downloader"),
	)

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.Endpoint, tg.BotToken, tg.ChatID)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Classifier: classifier,
		Downloader: downloader,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
	})
	a.loader = parser.NewLoader(client)
	if !cfg.Scanner.DisableProbe {
		a.prober = imaging.NewProber(client)
	}
	a.surface = control.NewSurface(store, baseLogger.With("component", "control"))

	return a, nil
}

// Surface exposes the control layer.
func (a *Application) Surface() *control.Surface {
	return a.surface
}

// StatsInterval is the refresh period of the live counters.
func (a *Application) StatsInterval() time.Duration {
	return a.cfg.Watch.StatsInterval
}

// ScanPages scans each page once and waits for every candidate to finish.
// Without urls the configured page list is used.
func (a *Application) ScanPages(ctx context.Context, urls []string) ([]domain.PageReport, error) {
	pages := a.cfg.Pages
	if len(urls) > 0 {
		pages = lo.Map(urls, func(u string, _ int) config.PageConfig {
			return config.PageConfig{URL: strings.TrimSpace(u)}
		})
	}
	if len(pages) == 0 {
		return nil, errors.New("no pages to scan: pass URLs or configure pages")
	}

	settings, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	source := parser.NewSource(a.loader, pages, a.logger.With("component", "source"))
	reports := make([]domain.PageReport, 0, len(pages))
	err = source.Visit(ctx, func(page config.PageConfig, doc *parser.Document, loadErr error) {
		report := domain.PageReport{URL: page.URL}
		if loadErr != nil {
			report.Error = loadErr.Error()
			reports = append(reports, report)
			return
		}

		sc := a.newScanner()
		sc.SetEnabled(settings.Enabled)
		report.Images = doc.Root().Find("img").Length()
		report.Candidates = sc.Scan(ctx, doc)
		sc.Wait()
		reports = append(reports, report)
	})
	if err != nil {
		return reports, err
	}

	if !settings.Enabled {
		a.logger.Info("scanning is disabled; no images were processed")
	}
	return reports, nil
}

// Watch observes one page until ctx is done.
func (a *Application) Watch(ctx context.Context, pageURL string) error {
	sc := a.newScanner()
	watcher := usecase.NewWatcher(usecase.WatcherDeps{
		Driver:  scheduler.NewTicker(a.cfg.Watch.Interval),
		Loader:  a.loader,
		Scanner: sc,
		Syncer:  a.surface,
		Logger:  a.logger.With("component", "watcher", "page", pageURL),
	})

	unsubscribe := a.surface.Subscribe(watcher)
	defer unsubscribe()

	if err := a.surface.Sync(ctx); err != nil {
		return err
	}
	if err := watcher.Start(ctx, pageURL); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Classifier.Timeout+5*time.Second)
	defer cancel()
	if err := watcher.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop watcher: %w", err)
	}
	return ctx.Err()
}

// Close releases storage connections.
func (a *Application) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) newScanner() *scanner.Scanner {
	return scanner.New(scanner.Deps{
		Handler: a.pipeline,
		Counter: a.store,
		Prober:  a.prober,
		Logger:  a.logger.With("component", "scanner"),
	}, scanner.Options{
		MinWidth:         a.cfg.Scanner.MinWidth,
		MinHeight:        a.cfg.Scanner.MinHeight,
		ExcludedPatterns: a.cfg.Scanner.ExcludedPatterns,
		MaxInFlight:      a.cfg.Scanner.MaxInFlight,
	})
}

func (a *Application) openStore(ctx context.Context) (ports.SettingsStore, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverFile, "":
		return storage.NewFileStore(a.cfg.Storage.Path), nil
	case config.DriverPostgres:
		db, err := storage.OpenPostgres(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store := storage.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

func newModelRegistry(cfg config.ClassifierConfig) *llm.Registry {
	registry := llm.NewRegistry()
	registry.Register(llm.NewGeminiClient(cfg.Model, cfg.Timeout))
	registry.Register(llm.NewChatGPTClient(cfg.Model, "", cfg.Timeout))
	registry.Register(llm.NewGenAIClient(cfg.Model))
	return registry
}
