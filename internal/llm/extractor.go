package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/metrics"
)

// Strategy names used in logs and metrics.
const (
	StrategyText   = "text"
	StrategyVision = "vision"
)

// Config tunes the extraction calls.
type Config struct {
	Temperature float64
	// VisionTimeout bounds a vision call; expiry counts as a failure.
	VisionTimeout time.Duration
}

// Extractor runs the text and vision strategies against a Provider.
type Extractor struct {
	provider Provider
	cfg      Config
	logger   *zap.Logger
}

// NewExtractor builds an Extractor. A nil provider is allowed and disables both strategies.
func NewExtractor(provider Provider, cfg Config, logger *zap.Logger) *Extractor {
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = 180 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, cfg: cfg, logger: logger}
}

// Enabled reports whether a provider is configured.
func (e *Extractor) Enabled() bool {
	return e != nil && e.provider != nil
}

// ExtractText runs the text strategy over eligibility and description. It returns nil when the
// call was skipped or failed, and a defaulted Result (Parsed=false) when the reply was unparseable.
func (e *Extractor) ExtractText(ctx context.Context, eligibility, description string) *Result {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(eligibility) == "" && strings.TrimSpace(description) == "" {
		return nil
	}
	raw, err := e.provider.Generate(ctx, Request{
		Prompt:      TextPrompt(eligibility, description),
		Schema:      Schema(),
		Temperature: e.cfg.Temperature,
	})
	return e.finish(StrategyText, raw, err)
}

// ExtractVision runs the vision strategy over ordered screenshot chunks, raced against VisionTimeout.
func (e *Extractor) ExtractVision(ctx context.Context, images []crawler.Image) *Result {
	if !e.Enabled() || len(images) == 0 {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.VisionTimeout)
	defer cancel()

	type reply struct {
		raw string
		err error
	}
	done := make(chan reply, 1)
	go func() {
		raw, err := e.provider.Generate(callCtx, Request{
			Prompt:      VisionPrompt(),
			Images:      images,
			Schema:      Schema(),
			Temperature: e.cfg.Temperature,
		})
		done <- reply{raw: raw, err: err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-callCtx.Done():
	}
	// A reply that lands after the deadline is still a timeout.
	if err := callCtx.Err(); err != nil {
		return e.finish(StrategyVision, "", fmt.Errorf("vision call timed out after %s: %w", e.cfg.VisionTimeout, err))
	}
	return e.finish(StrategyVision, r.raw, r.err)
}

func (e *Extractor) finish(strategy, raw string, err error) *Result {
	if err != nil {
		metrics.ObserveLLMCall(strategy, "error")
		e.logger.Warn("llm extraction failed", zap.Error(&crawler.ExtractionError{Strategy: strategy, Err: err}))
		return nil
	}
	result := ParseResult(raw)
	if !result.Parsed {
		metrics.ObserveLLMCall(strategy, "unparseable")
		e.logger.Warn("llm response not parseable, using defaults",
			zap.String("strategy", strategy),
			zap.Int("response_len", len(raw)),
		)
		return &result
	}
	metrics.ObserveLLMCall(strategy, "ok")
	return &result
}
