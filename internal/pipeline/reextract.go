package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// Reextractor reapplies the text strategy to stored records and rewrites their narrative fields.
type Reextractor struct {
	store  crawler.Store
	llm    Extractor
	pace   time.Duration
	logger *zap.Logger
	// Sleep paces LLM calls; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewReextractor builds a Reextractor that waits pace between LLM calls.
func NewReextractor(store crawler.Store, extractor Extractor, pace time.Duration, logger *zap.Logger) *Reextractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reextractor{store: store, llm: extractor, pace: pace, logger: logger, Sleep: crawler.SleepContext}
}

// Run processes up to opts.Limit records. Per-record failures are accumulated, never fatal.
func (r *Reextractor) Run(ctx context.Context, opts crawler.ReextractOptions) crawler.Result {
	if r.llm == nil || !r.llm.Enabled() {
		return crawler.Result{Success: false, Errors: []string{"llm provider is not configured"}}
	}
	records, err := r.store.ListForReextract(ctx, opts.Limit, opts.Force)
	if err != nil {
		r.logger.Error("list records for re-extraction failed", zap.Error(err))
		return crawler.Result{Success: false, Errors: []string{err.Error()}}
	}
	r.logger.Info("re-extraction started", zap.Int("records", len(records)), zap.Bool("force", opts.Force))

	result := crawler.Result{Success: true}
	called := false
	for _, record := range records {
		key := record.Key()
		if strings.TrimSpace(record.Eligibility) == "" && strings.TrimSpace(record.Description) == "" {
			result.AddError("%s: no description or eligibility text", key)
			continue
		}
		if called {
			if err := r.Sleep(ctx, r.pace); err != nil {
				result.AddError("re-extraction interrupted: %v", err)
				break
			}
		}
		called = true

		extracted := r.llm.ExtractText(ctx, record.Eligibility, record.Description)
		switch {
		case extracted == nil:
			result.AddError("%s: extraction failed", key)
			continue
		case !extracted.Parsed:
			result.AddError("%s: response not parseable", key)
			continue
		}
		if err := r.store.UpdateEnrichment(ctx, key, extracted.Enrichment()); err != nil {
			if errors.Is(err, crawler.ErrNotFound) {
				result.AddError("%s: record disappeared", key)
			} else {
				result.AddError("%s: %v", key, err)
			}
			continue
		}
		result.Count++
	}
	r.logger.Info("re-extraction finished", zap.Int("count", result.Count), zap.Int("errors", len(result.Errors)))
	return result
}
