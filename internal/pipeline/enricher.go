// Package pipeline runs the crawl-extract-enrich pass: list and detail fetch, structural
// extraction, the tiered LLM fallback, and persistence.
package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/extract"
	"github.com/JakeFAU/startup-programs-crawler/internal/headless"
	"github.com/JakeFAU/startup-programs-crawler/internal/llm"
)

// Extractor is the LLM boundary used by the fallback policy.
type Extractor interface {
	Enabled() bool
	ExtractText(ctx context.Context, eligibility, description string) *llm.Result
	ExtractVision(ctx context.Context, images []crawler.Image) *llm.Result
}

// Capturer renders a detail page into screenshot chunks.
type Capturer interface {
	Capture(ctx context.Context, page headless.Page, detailURL, primarySelector string) ([]crawler.Image, error)
}

// Target identifies the record being enriched and where to render it from.
type Target struct {
	RunID           string
	ContentSelector string
	// Browser is nil when rendering is disabled for the pass.
	Browser headless.Browser
}

// Outcome reports which tiers ran for one record.
type Outcome struct {
	KeywordField string
	TextRan      bool
	VisionRan    bool
	LLMProcessed bool
}

// Enricher applies the fallback and merge policy to one record.
type Enricher struct {
	llm      Extractor
	capturer Capturer
	blobs    crawler.BlobStore
	prefix   string
	logger   *zap.Logger
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithArchive stores every vision chunk under prefix before the vision call.
func WithArchive(blobs crawler.BlobStore, prefix string) EnricherOption {
	return func(e *Enricher) {
		e.blobs = blobs
		e.prefix = prefix
	}
}

// NewEnricher builds an Enricher. A nil extractor or capturer disables the matching tiers.
func NewEnricher(extractor Extractor, capturer Capturer, logger *zap.Logger, opts ...EnricherOption) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Enricher{llm: extractor, capturer: capturer, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich fills record in place, tier by tier. Tier failures degrade silently; the record is always usable.
func (e *Enricher) Enrich(ctx context.Context, record *crawler.ProgramRecord, target Target) Outcome {
	var out Outcome
	log := e.logger.With(zap.String("source", string(record.Source)), zap.String("source_id", record.SourceID))

	// Keyword inference only fills; a value taken from the page's own field label stands.
	if record.SupportField == "" {
		if field := extract.InferSupportField(record.Description, record.Eligibility); field != "" {
			record.SupportField = field
			out.KeywordField = field
		}
	}

	// Sentinels fill too: "전국" or "제한없음" is an answer, not an absence.
	// A defaulted (unparseable) reply fills the same way but is not processed.
	llmEnabled := e.llm != nil && e.llm.Enabled()
	if llmEnabled {
		if text := e.llm.ExtractText(ctx, record.Eligibility, record.Description); text != nil {
			out.TextRan = true
			record.Fill(text.Fields())
			out.LLMProcessed = text.Parsed
		}
	}

	if missing := record.MissingCritical(); len(missing) > 0 && llmEnabled && target.Browser != nil && e.capturer != nil {
		log.Info("critical fields missing, trying vision", zap.Strings("missing", missing))
		if vision := e.vision(ctx, record, target, log); vision != nil {
			out.VisionRan = true
			if vision.Parsed {
				info := vision.Informative()
				if record.SupportField != "" {
					info.SupportField = ""
				}
				record.Overlay(info)
				record.Fill(vision.Fields())
				out.LLMProcessed = true
			}
		}
	}
	return out
}

func (e *Enricher) vision(ctx context.Context, record *crawler.ProgramRecord, target Target, log *zap.Logger) *llm.Result {
	page, err := target.Browser.NewPage(ctx)
	if err != nil {
		log.Warn("open tab failed", zap.Error(err))
		return nil
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("close tab failed", zap.Error(err))
		}
	}()

	images, err := e.capturer.Capture(ctx, page, record.URL, target.ContentSelector)
	if err != nil || len(images) == 0 {
		log.Warn("capture produced no images", zap.Error(err))
		return nil
	}
	e.archive(ctx, record.Key(), target.RunID, images, log)
	return e.llm.ExtractVision(ctx, images)
}

// archive writes chunks to the blob store; failures are logged only.
func (e *Enricher) archive(ctx context.Context, key crawler.Key, runID string, images []crawler.Image, log *zap.Logger) {
	if e.blobs == nil {
		return
	}
	for i, img := range images {
		data, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			log.Warn("decode capture chunk failed", zap.Int("chunk", i), zap.Error(err))
			continue
		}
		objectPath := ArchivePath(e.prefix, key, runID, i)
		uri, err := e.blobs.PutObject(ctx, objectPath, img.MIMEType, bytes.NewReader(data))
		if err != nil {
			log.Warn("archive capture chunk failed", zap.String("path", objectPath), zap.Error(err))
			continue
		}
		log.Debug("archived capture chunk", zap.String("uri", uri))
	}
}

// ArchivePath is <prefix>/<source>/<sourceId>/<runId>-<n>.jpg.
func ArchivePath(prefix string, key crawler.Key, runID string, n int) string {
	return path.Join(prefix, string(key.Source), key.SourceID, fmt.Sprintf("%s-%d.jpg", runID, n))
}
