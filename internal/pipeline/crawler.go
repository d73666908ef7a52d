package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/extract"
	"github.com/JakeFAU/startup-programs-crawler/internal/headless"
	"github.com/JakeFAU/startup-programs-crawler/internal/metrics"
	"github.com/JakeFAU/startup-programs-crawler/internal/telemetry"
)

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher digests record content for change detection downstream.
type Hasher interface {
	HashParts(parts ...string) (string, error)
}

// Config controls the orchestrator.
type Config struct {
	// DefaultMaxPages applies when a request leaves MaxPages unset.
	DefaultMaxPages int
	// Topic receives upsert notifications; empty disables publishing.
	Topic string
}

// Deps are the collaborators of a Crawler. Publisher, Launcher, IDs, and Hasher are optional.
type Deps struct {
	Strategies map[crawler.Source]extract.Strategy
	Fetcher    crawler.Fetcher
	Pacer      crawler.Pacer
	Store      crawler.Store
	Publisher  crawler.Publisher
	Launcher   headless.Launcher
	Enricher   *Enricher
	IDs        IDGenerator
	Hasher     Hasher
	Clock      crawler.Clock
}

// Notification is published after every successful upsert.
type Notification struct {
	Source       crawler.Source `json:"source"`
	SourceID     string         `json:"sourceId"`
	URL          string         `json:"url"`
	Created      bool           `json:"created"`
	LLMProcessed bool           `json:"llmProcessed"`
	ContentHash  string         `json:"contentHash,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	RunID        string         `json:"runId,omitempty"`
}

// Crawler drives one source at a time, strictly sequentially.
type Crawler struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewCrawler validates deps and builds a Crawler.
func NewCrawler(deps Deps, cfg Config, logger *zap.Logger) (*Crawler, error) {
	if len(deps.Strategies) == 0 {
		return nil, errors.New("at least one source strategy is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Pacer == nil {
		deps.Pacer = noPacer{}
	}
	if deps.Enricher == nil {
		deps.Enricher = NewEnricher(nil, nil, logger)
	}
	if deps.Clock == nil {
		deps.Clock = crawler.SystemClock{}
	}
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{deps: deps, cfg: cfg, logger: logger}, nil
}

// CrawlAll runs each source in turn and reports one result per source.
func (c *Crawler) CrawlAll(ctx context.Context, sources []crawler.Source, opts crawler.CrawlOptions) map[crawler.Source]crawler.Result {
	out := make(map[crawler.Source]crawler.Result, len(sources))
	for _, source := range sources {
		out[source] = c.Crawl(ctx, source, opts)
	}
	return out
}

// run is the per-pass state.
type run struct {
	id       string
	source   crawler.Source
	strategy extract.Strategy
	opts     crawler.CrawlOptions
	browser  headless.Browser
	log      *zap.Logger
	result   crawler.Result
	attempts int
}

// limitReached counts attempted items, not successful upserts.
func (r *run) limitReached() bool {
	return r.opts.Limit > 0 && r.attempts >= r.opts.Limit
}

// Crawl runs one pass over source. Item and page failures are accumulated; only resource
// acquisition failures mark the result unsuccessful.
func (c *Crawler) Crawl(ctx context.Context, source crawler.Source, opts crawler.CrawlOptions) crawler.Result {
	strategy, ok := c.deps.Strategies[source]
	if !ok {
		return crawler.Result{Success: false, Errors: []string{fmt.Sprintf("unknown source %q", source)}}
	}
	r := &run{id: c.newRunID(), source: source, strategy: strategy, opts: opts}
	r.log = c.logger.With(zap.String("source", string(source)), zap.String("run_id", r.id))

	ctx, span := telemetry.Tracer().Start(ctx, "crawl "+string(source))
	span.SetAttributes(attribute.String("crawl.run_id", r.id), attribute.String("crawl.target_id", opts.TargetID))
	defer span.End()

	if opts.EnableRendering {
		if c.deps.Launcher == nil {
			r.log.Warn("rendering requested but no browser is configured")
		} else {
			browser, err := c.deps.Launcher.Launch(ctx)
			if err != nil {
				r.log.Error("browser launch failed", zap.Error(err))
				span.SetStatus(codes.Error, "browser launch failed")
				return crawler.Result{Success: false, Errors: []string{fmt.Sprintf("launch browser: %v", err)}}
			}
			r.browser = browser
			defer func() {
				if err := browser.Close(); err != nil {
					r.log.Warn("browser close failed", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	if opts.TargetID != "" {
		c.crawlTarget(ctx, r)
	} else {
		c.crawlPages(ctx, r)
	}
	r.result.Success = true
	span.SetAttributes(attribute.Int("crawl.count", r.result.Count), attribute.Int("crawl.errors", len(r.result.Errors)))
	r.log.Info("crawl pass finished",
		zap.Int("count", r.result.Count),
		zap.Int("errors", len(r.result.Errors)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return r.result
}

func (c *Crawler) crawlTarget(ctx context.Context, r *run) {
	item := crawler.ListItem{SourceID: r.opts.TargetID, URL: r.strategy.DetailURL(r.opts.TargetID)}
	opts := r.opts
	opts.FetchDetails = true
	r.opts = opts
	c.processItem(ctx, r, item, "")
}

func (c *Crawler) crawlPages(ctx context.Context, r *run) {
	maxPages := r.opts.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.DefaultMaxPages
	}
	pages := min(maxPages, extract.MaxDiscoveredPages)
	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			r.result.AddError("crawl canceled at page %d: %v", page, ctx.Err())
			return
		}
		if r.limitReached() {
			return
		}
		listURL := r.strategy.ListURL(page)
		log := r.log.With(zap.Int("page", page), zap.String("url", listURL))

		body, err := c.fetch(ctx, listURL, nil)
		if err != nil {
			log.Warn("list page fetch failed", zap.Error(err))
			metrics.ObserveItemError(string(r.source), "list")
			r.result.AddError("page %d: %v", page, err)
			continue
		}
		if page == 1 {
			discovered := r.strategy.TotalPages(body)
			pages = min(maxPages, discovered)
			log.Debug("pagination discovered", zap.Int("discovered", discovered), zap.Int("pages", pages))
		}

		items, err := r.strategy.ParseList(body)
		if err != nil {
			log.Warn("list page parse failed", zap.Error(err))
			metrics.ObserveItemError(string(r.source), "parse")
			r.result.AddError("page %d: %v", page, err)
			continue
		}
		log.Info("list page parsed", zap.Int("items", len(items)))

		for _, item := range items {
			if r.limitReached() {
				return
			}
			c.processItem(ctx, r, item, listURL)
		}
	}
}

func (c *Crawler) processItem(ctx context.Context, r *run, item crawler.ListItem, referrer string) {
	r.attempts++
	log := r.log.With(zap.String("source_id", item.SourceID), zap.String("url", item.URL))
	ctx, span := telemetry.Tracer().Start(ctx, "item "+item.SourceID)
	defer span.End()
	if err := c.upsertItem(ctx, r, item, referrer, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "item failed")
		log.Warn("item failed", zap.Error(err))
		r.result.AddError("%s: %v", item.SourceID, err)
		return
	}
	r.result.Count++
}

func (c *Crawler) upsertItem(ctx context.Context, r *run, item crawler.ListItem, referrer string, log *zap.Logger) error {
	record := crawler.ProgramRecord{
		Source:   r.source,
		SourceID: item.SourceID,
		URL:      item.URL,
		Fields:   item.Fields,
	}

	if r.opts.FetchDetails {
		var headers http.Header
		if referrer != "" {
			headers = http.Header{"Referer": {referrer}}
		}
		body, err := c.fetch(ctx, item.URL, headers)
		if err != nil {
			metrics.ObserveItemError(string(r.source), "detail")
			return fmt.Errorf("fetch detail: %w", err)
		}
		detail := r.strategy.ParseDetail(body, item.URL)
		// The list title is the board's own wording; the detail heading only fills target crawls.
		if record.Title != "" {
			detail.Title = ""
		}
		record.Overlay(detail)

		outcome := c.deps.Enricher.Enrich(ctx, &record, Target{
			RunID:           r.id,
			ContentSelector: r.strategy.ContentSelector(),
			Browser:         r.browser,
		})
		record.LLMProcessed = outcome.LLMProcessed
		log.Debug("enrichment finished",
			zap.Bool("text", outcome.TextRan),
			zap.Bool("vision", outcome.VisionRan),
			zap.Bool("llm_processed", outcome.LLMProcessed),
		)
	}

	record.Truncate()
	record.UpdatedAt = c.deps.Clock.Now()
	created, err := c.deps.Store.Upsert(ctx, record)
	if err != nil {
		metrics.ObserveItemError(string(r.source), "upsert")
		return fmt.Errorf("upsert: %w", err)
	}
	metrics.ObserveUpsert(string(r.source), created)
	c.notify(ctx, r, record, created, log)
	return nil
}

func (c *Crawler) fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	if err := c.deps.Pacer.Wait(ctx, url); err != nil {
		return nil, err
	}
	body, err := c.deps.Fetcher.Fetch(ctx, url, headers)
	c.deps.Pacer.Done(url)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// notify publishes the upsert; the record is already stored, so failures are logged only.
func (c *Crawler) notify(ctx context.Context, r *run, record crawler.ProgramRecord, created bool, log *zap.Logger) {
	if c.deps.Publisher == nil || c.cfg.Topic == "" {
		return
	}
	msg := Notification{
		Source:       record.Source,
		SourceID:     record.SourceID,
		URL:          record.URL,
		Created:      created,
		LLMProcessed: record.LLMProcessed,
		UpdatedAt:    record.UpdatedAt,
		RunID:        r.id,
	}
	if c.deps.Hasher != nil {
		if sum, err := c.deps.Hasher.HashParts(record.Title, record.Description, record.Eligibility); err == nil {
			msg.ContentHash = sum
		}
	}
	if _, err := c.deps.Publisher.Publish(ctx, c.cfg.Topic, msg); err != nil {
		log.Warn("publish upsert notification failed", zap.Error(err))
	}
}

func (c *Crawler) newRunID() string {
	if c.deps.IDs != nil {
		if id, err := c.deps.IDs.NewID(); err == nil {
			return id
		}
	}
	return c.deps.Clock.Now().Format("20060102T150405.000000000")
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context, _ string) error { return ctx.Err() }

func (noPacer) Done(string) {}
