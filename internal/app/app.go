// Package app builds the long-lived services shared by the CLI commands and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/api"
	"github.com/JakeFAU/startup-programs-crawler/internal/config"
	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/startup-programs-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/startup-programs-crawler/internal/hash/sha256"
	"github.com/JakeFAU/startup-programs-crawler/internal/headless"
	"github.com/JakeFAU/startup-programs-crawler/internal/id/uuid"
	"github.com/JakeFAU/startup-programs-crawler/internal/llm"
	"github.com/JakeFAU/startup-programs-crawler/internal/logging"
	"github.com/JakeFAU/startup-programs-crawler/internal/metrics"
	"github.com/JakeFAU/startup-programs-crawler/internal/pipeline"
	"github.com/JakeFAU/startup-programs-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/startup-programs-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/startup-programs-crawler/internal/storage/gcs"
	"github.com/JakeFAU/startup-programs-crawler/internal/storage/local"
	"github.com/JakeFAU/startup-programs-crawler/internal/storage/memory"
	"github.com/JakeFAU/startup-programs-crawler/internal/storage/postgres"
	"github.com/JakeFAU/startup-programs-crawler/internal/telemetry"
)

// App holds all the shared, long-lived services for the application.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       crawler.Store
	Crawler     *pipeline.Crawler
	Reextractor *pipeline.Reextractor

	ready   []func(context.Context) error
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Overrides replaces infrastructure in tests and local runs. Nil fields are built from config.
type Overrides struct {
	Store     crawler.Store
	Blobs     crawler.BlobStore
	Publisher crawler.Publisher
	Fetcher   crawler.Fetcher
	Launcher  headless.Launcher
	Provider  llm.Provider
}

// New builds every service from cfg. It fails fast when a configured backend cannot be reached;
// on failure everything opened so far is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, ov Overrides) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, logging.ServiceName)
	if err != nil {
		return nil, err
	}
	a.addCloser("tracing", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	})

	store, err := a.openStore(ctx, ov.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store

	blobs, err := a.openBlobs(ctx, ov.Blobs)
	if err != nil {
		return nil, err
	}
	publisher, err := a.openPublisher(ctx, ov.Publisher)
	if err != nil {
		return nil, err
	}

	strategies := make(map[crawler.Source]extract.Strategy)
	for _, source := range crawler.Sources() {
		strategy, err := extract.New(source, cfg.BaseURL(source))
		if err != nil {
			return nil, fmt.Errorf("init %s strategy: %w", source, err)
		}
		strategies[source] = strategy
	}

	fetcher := ov.Fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:      cfg.Crawler.UserAgent,
			AcceptLanguage: cfg.Crawler.AcceptLanguage,
			Timeout:        cfg.RequestTimeout(),
		},
			collyfetcher.WithRetryPolicy(cfg.FetchRetryPolicy()),
			collyfetcher.WithLogger(logger.Named("fetch")),
		)
	}

	provider := ov.Provider
	if provider == nil {
		cohere, err := llm.NewCohere(llm.CohereConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			VisionModel: cfg.LLM.VisionModel,
		})
		switch {
		case errors.Is(err, llm.ErrNoCredential):
			logger.Warn("llm api key not configured; enrichment disabled")
		case err != nil:
			return nil, fmt.Errorf("init llm provider: %w", err)
		default:
			provider = cohere
		}
	}
	extractor := llm.NewExtractor(provider, llm.Config{
		Temperature:   cfg.LLM.Temperature,
		VisionTimeout: secondsDuration(cfg.LLM.VisionTimeoutSeconds),
	}, logger.Named("llm"))

	launcher := ov.Launcher
	if launcher == nil {
		launcher = headless.NewChromeLauncher(headless.Config{
			UserAgent: cfg.Crawler.UserAgent,
			ExecPath:  cfg.Headless.ExecPath,
		}, logger.Named("headless"))
	}
	capturer := headless.NewCapturer(headless.CaptureConfig{
		NavTimeout:  secondsDuration(cfg.Headless.NavTimeoutSeconds),
		MaxChunks:   cfg.Headless.MaxChunks,
		ChunkHeight: cfg.Headless.ChunkHeight,
	}, cfg.NavigationRetryPolicy(), logger.Named("capture"))

	var enricherOpts []pipeline.EnricherOption
	if blobs != nil {
		enricherOpts = append(enricherOpts, pipeline.WithArchive(blobs, cfg.Storage.Prefix))
	}
	enricher := pipeline.NewEnricher(extractor, capturer, logger.Named("enrich"), enricherOpts...)

	a.Crawler, err = pipeline.NewCrawler(pipeline.Deps{
		Strategies: strategies,
		Fetcher:    fetcher,
		Pacer:      ratelimit.New(ratelimit.Config{Interval: cfg.PacingInterval()}),
		Store:      store,
		Publisher:  publisher,
		Launcher:   launcher,
		Enricher:   enricher,
		IDs:        uuid.New(),
		Hasher:     sha256.New(),
	}, pipeline.Config{
		DefaultMaxPages: cfg.Crawler.MaxPages,
		Topic:           cfg.PubSub.Topic,
	}, logger.Named("crawl"))
	if err != nil {
		return nil, fmt.Errorf("init crawler: %w", err)
	}
	a.Reextractor = pipeline.NewReextractor(store, extractor, cfg.LLMPace(), logger.Named("reextract"))

	logger.Info("application services initialized",
		zap.Bool("llm_enabled", extractor.Enabled()),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("publish", publisher != nil),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, override crawler.Store) (crawler.Store, error) {
	if override != nil {
		return override, nil
	}
	if a.Config.DB.DSN == "" {
		a.Logger.Warn("db.dsn not set; using the in-memory program store")
		return memory.NewProgramStore(nil), nil
	}
	store, err := postgres.NewProgramStore(ctx, postgres.Config{
		DSN:      a.Config.DB.DSN,
		Table:    a.Config.DB.Table,
		MaxConns: int32(a.Config.DB.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("init program store: %w", err)
	}
	a.addCloser("postgres", func() error {
		store.Close()
		return nil
	})
	a.ready = append(a.ready, store.Ping)
	if a.Config.DB.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (a *App) openBlobs(ctx context.Context, override crawler.BlobStore) (crawler.BlobStore, error) {
	if override != nil {
		return override, nil
	}
	switch a.Config.Storage.Backend {
	case config.StorageMemory:
		return memory.NewBlobStore(), nil
	case config.StorageLocal:
		store, err := local.New(local.Config{BaseDir: a.Config.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local capture archive: %w", err)
		}
		return store, nil
	case config.StorageGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.Config.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs capture archive: %w", err)
		}
		a.addCloser("gcs", store.Close)
		return store, nil
	default:
		return nil, nil
	}
}

func (a *App) openPublisher(ctx context.Context, override crawler.Publisher) (crawler.Publisher, error) {
	if override != nil {
		return override, nil
	}
	if a.Config.PubSub.Topic == "" {
		return nil, nil
	}
	pub, err := pubsub.Open(ctx, a.Config.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.addCloser("pubsub", pub.Close)
	return pub, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// GetLogger returns the root logger.
func (a *App) GetLogger() *zap.Logger { return a.Logger }

// GetConfig returns the configuration the services were built from.
func (a *App) GetConfig() config.Config { return a.Config }

// CrawlRunner exposes the crawl pipeline.
func (a *App) CrawlRunner() api.CrawlRunner { return a.Crawler }

// ReextractRunner exposes the re-extraction pass.
func (a *App) ReextractRunner() api.ReextractRunner { return a.Reextractor }

// Ready checks every backend that supports a connectivity probe.
func (a *App) Ready(ctx context.Context) error {
	for _, check := range a.ready {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts services down in reverse order of construction. It is safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.Logger.Warn("close service failed", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
