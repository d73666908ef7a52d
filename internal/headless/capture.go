package headless

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/metrics"
)

// ViewerVendors are URL substrings identifying embedded document-viewer frames.
var ViewerVendors = []string{"synap", "docviewer", "doc_viewer", "viewer.do", "pdfjs", "hwpviewer", "streamdocs"}

// ErrNoCapture is returned when no screenshot could be produced.
var ErrNoCapture = errors.New("no screenshot captured")

// CaptureConfig bounds every wait and size in the capture algorithm.
type CaptureConfig struct {
	NavTimeout      time.Duration
	PrimaryWait     time.Duration
	FramePoll       time.Duration
	FramePolls      int
	BodyWait        time.Duration
	ContentPolls    int
	MeasureRounds   int
	MeasurePause    time.Duration
	GrowPause       time.Duration
	MinHeight       int
	MaxHeight       int
	DefaultWidth    int
	MaxWidth        int
	ScrollStep      int
	ScrollPause     time.Duration
	SettlePause     time.Duration
	ChunkHeight     int
	MaxChunks       int
	ChunkQuality    int
	ElementQuality  int
	ChunkSettleTime time.Duration
}

// DefaultCaptureConfig returns the tuned defaults for the slow government viewer pages.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		NavTimeout:      90 * time.Second,
		PrimaryWait:     10 * time.Second,
		FramePoll:       500 * time.Millisecond,
		FramePolls:      80,
		BodyWait:        30 * time.Second,
		ContentPolls:    40,
		MeasureRounds:   5,
		MeasurePause:    2 * time.Second,
		GrowPause:       3 * time.Second,
		MinHeight:       2000,
		MaxHeight:       20000,
		DefaultWidth:    1280,
		MaxWidth:        2400,
		ScrollStep:      1000,
		ScrollPause:     200 * time.Millisecond,
		SettlePause:     time.Second,
		ChunkHeight:     3000,
		MaxChunks:       6,
		ChunkQuality:    60,
		ElementQuality:  85,
		ChunkSettleTime: time.Second,
	}
}

// Capturer renders a detail page and slices its document content into JPEG chunks.
type Capturer struct {
	cfg    CaptureConfig
	nav    crawler.RetryPolicy
	logger *zap.Logger
	// Sleep pauses between steps; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewCapturer builds a Capturer. Zero config fields fall back to DefaultCaptureConfig.
func NewCapturer(cfg CaptureConfig, nav crawler.RetryPolicy, logger *zap.Logger) *Capturer {
	def := DefaultCaptureConfig()
	fillDuration(&cfg.NavTimeout, def.NavTimeout)
	fillDuration(&cfg.PrimaryWait, def.PrimaryWait)
	fillDuration(&cfg.FramePoll, def.FramePoll)
	fillInt(&cfg.FramePolls, def.FramePolls)
	fillDuration(&cfg.BodyWait, def.BodyWait)
	fillInt(&cfg.ContentPolls, def.ContentPolls)
	fillInt(&cfg.MeasureRounds, def.MeasureRounds)
	fillDuration(&cfg.MeasurePause, def.MeasurePause)
	fillDuration(&cfg.GrowPause, def.GrowPause)
	fillInt(&cfg.MinHeight, def.MinHeight)
	fillInt(&cfg.MaxHeight, def.MaxHeight)
	fillInt(&cfg.DefaultWidth, def.DefaultWidth)
	fillInt(&cfg.MaxWidth, def.MaxWidth)
	fillInt(&cfg.ScrollStep, def.ScrollStep)
	fillDuration(&cfg.ScrollPause, def.ScrollPause)
	fillDuration(&cfg.SettlePause, def.SettlePause)
	fillInt(&cfg.ChunkHeight, def.ChunkHeight)
	fillInt(&cfg.MaxChunks, def.MaxChunks)
	fillInt(&cfg.ChunkQuality, def.ChunkQuality)
	fillInt(&cfg.ElementQuality, def.ElementQuality)
	fillDuration(&cfg.ChunkSettleTime, def.ChunkSettleTime)
	if nav.MaxAttempts == 0 {
		nav = crawler.NewNavigationRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{cfg: cfg, nav: nav, logger: logger, Sleep: crawler.SleepContext}
}

// Config exposes the effective configuration.
func (c *Capturer) Config() CaptureConfig { return c.cfg }

// Capture renders detailURL in page and returns the ordered screenshot chunks. Step failures
// degrade to a smaller capture; the error is non-nil only when no image at all was produced.
func (c *Capturer) Capture(ctx context.Context, page Page, detailURL, primarySelector string) ([]crawler.Image, error) {
	log := c.logger.With(zap.String("url", detailURL))

	if err := c.navigate(ctx, page, detailURL, ""); err != nil {
		metrics.ObserveCapture("none", 0)
		return nil, &crawler.RenderError{Stage: "navigate", Err: err}
	}

	if !WaitBestEffort(ctx, c.cfg.PrimaryWait, func(ctx context.Context) error {
		return page.WaitVisible(ctx, primarySelector)
	}) {
		log.Debug("primary content not visible, continuing", zap.String("selector", primarySelector))
	}

	frameURL, err := c.findViewer(ctx, page)
	if err != nil {
		metrics.ObserveCapture("none", 0)
		return nil, &crawler.RenderError{Stage: "viewer", Err: err}
	}

	if frameURL != "" {
		log.Info("viewer frame found", zap.String("frame_url", frameURL))
		images, err := c.captureViewer(ctx, page, frameURL, detailURL)
		if err == nil && len(images) > 0 {
			metrics.ObserveCapture("viewer", len(images))
			return images, nil
		}
		log.Warn("viewer capture failed, falling back to content element", zap.Error(err))
		if navErr := c.navigate(ctx, page, detailURL, ""); navErr != nil {
			metrics.ObserveCapture("none", 0)
			return nil, &crawler.RenderError{Stage: "renavigate", Err: navErr}
		}
	}

	image, err := c.captureElement(ctx, page, primarySelector)
	if err != nil {
		metrics.ObserveCapture("none", 0)
		return nil, &crawler.RenderError{Stage: "element", Err: err}
	}
	metrics.ObserveCapture("element", 1)
	return []crawler.Image{image}, nil
}

func (c *Capturer) navigate(ctx context.Context, page Page, url, referrer string) error {
	policy := c.nav
	policy.Sleep = c.Sleep
	_, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavTimeout)
		defer cancel()
		if err := page.Navigate(navCtx, url, referrer); err != nil {
			c.logger.Warn("navigation attempt failed",
				zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	return err
}

// findViewer polls the frame list for a known viewer vendor. "" means no viewer appeared.
func (c *Capturer) findViewer(ctx context.Context, page Page) (string, error) {
	for poll := 0; poll < c.cfg.FramePolls; poll++ {
		urls, err := page.FrameURLs(ctx)
		if err == nil {
			if u := matchViewer(urls); u != "" {
				return u, nil
			}
		}
		if err := c.Sleep(ctx, c.cfg.FramePoll); err != nil {
			return "", err
		}
	}
	return "", nil
}

func matchViewer(urls []string) string {
	for _, u := range urls {
		lower := strings.ToLower(u)
		for _, vendor := range ViewerVendors {
			if strings.Contains(lower, vendor) {
				return u
			}
		}
	}
	return ""
}

type dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (c *Capturer) captureViewer(ctx context.Context, page Page, frameURL, referrer string) ([]crawler.Image, error) {
	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavTimeout)
	err := page.Navigate(navCtx, frameURL, referrer)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("open viewer: %w", err)
	}
	if !WaitBestEffort(ctx, c.cfg.BodyWait, func(ctx context.Context) error {
		return page.WaitReady(ctx, "body")
	}) {
		return nil, errors.New("viewer body never appeared")
	}
	if !c.waitContent(ctx, page) {
		c.logger.Debug("viewer content heuristic not satisfied, continuing")
	}

	dims, err := c.measure(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := c.scrollPass(ctx, page, dims.Height); err != nil {
		return nil, err
	}
	width := c.clampWidth(dims.Width)
	height := c.clampHeight(dims.Height)
	if err := page.SetViewport(ctx, int64(width), int64(height)); err != nil {
		c.logger.Debug("viewport resize failed", zap.Error(err))
	}

	var images []crawler.Image
	for i := 0; i < c.cfg.MaxChunks; i++ {
		y := i * c.cfg.ChunkHeight
		if y >= height {
			break
		}
		h := min(c.cfg.ChunkHeight, height-y)
		if err := page.Eval(ctx, scrollToJS(y), nil); err != nil {
			c.logger.Debug("chunk scroll failed", zap.Int("chunk", i), zap.Error(err))
		}
		if err := c.Sleep(ctx, c.cfg.ChunkSettleTime); err != nil {
			return images, err
		}
		data, err := page.Screenshot(ctx, Clip{X: 0, Y: float64(y), Width: float64(width), Height: float64(h)}, c.cfg.ChunkQuality)
		if err != nil {
			c.logger.Warn("chunk screenshot failed", zap.Int("chunk", i), zap.Error(err))
			break
		}
		images = append(images, jpegImage(data))
	}
	if len(images) == 0 {
		return nil, ErrNoCapture
	}
	return images, nil
}

// waitContent polls the image-loaded/text-length heuristic, bounded by ContentPolls.
func (c *Capturer) waitContent(ctx context.Context, page Page) bool {
	for poll := 0; poll < c.cfg.ContentPolls; poll++ {
		var ready bool
		if err := page.Eval(ctx, contentReadyJS, &ready); err == nil && ready {
			return true
		}
		if err := c.Sleep(ctx, c.cfg.FramePoll); err != nil {
			return false
		}
	}
	return false
}

// measure finds the true content height, scrolling to let virtualized content grow the document.
func (c *Capturer) measure(ctx context.Context, page Page) (dimensions, error) {
	var dims dimensions
	if err := page.Eval(ctx, measureJS, &dims); err != nil {
		return dimensions{}, fmt.Errorf("measure viewer: %w", err)
	}
	_ = page.Eval(ctx, scrollToJS(int(dims.Height)), nil)
	for round := 0; round < c.cfg.MeasureRounds; round++ {
		if err := c.Sleep(ctx, c.cfg.MeasurePause); err != nil {
			return dims, err
		}
		var next dimensions
		if err := page.Eval(ctx, measureJS, &next); err != nil {
			break
		}
		if next.Width > dims.Width {
			dims.Width = next.Width
		}
		if next.Height > dims.Height {
			dims.Height = next.Height
			_ = page.Eval(ctx, scrollToJS(int(dims.Height)), nil)
			if err := c.Sleep(ctx, c.cfg.GrowPause); err != nil {
				return dims, err
			}
			continue
		}
		if int(dims.Height) >= c.cfg.MinHeight {
			break
		}
	}
	return dims, nil
}

// scrollPass walks the document top to bottom to trigger lazy-loaded images, then returns to top.
func (c *Capturer) scrollPass(ctx context.Context, page Page, height float64) error {
	limit := c.clampHeight(height)
	for y := 0; y < limit; y += c.cfg.ScrollStep {
		_ = page.Eval(ctx, scrollToJS(y), nil)
		if err := c.Sleep(ctx, c.cfg.ScrollPause); err != nil {
			return err
		}
	}
	_ = page.Eval(ctx, scrollToJS(0), nil)
	return c.Sleep(ctx, c.cfg.SettlePause)
}

type rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (c *Capturer) captureElement(ctx context.Context, page Page, selector string) (crawler.Image, error) {
	var r rect
	if err := page.Eval(ctx, elementRectJS(selector), &r); err != nil {
		return crawler.Image{}, fmt.Errorf("measure element: %w", err)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return crawler.Image{}, ErrNoCapture
	}
	height := min(int(r.Height), c.cfg.MaxHeight)
	width := c.clampWidth(r.X + r.Width)
	if err := page.SetViewport(ctx, int64(width), int64(max(height+int(r.Y), c.cfg.MinHeight))); err != nil {
		c.logger.Debug("viewport resize failed", zap.Error(err))
	}
	if err := c.Sleep(ctx, c.cfg.SettlePause); err != nil {
		return crawler.Image{}, err
	}
	data, err := page.Screenshot(ctx, Clip{X: r.X, Y: r.Y, Width: r.Width, Height: float64(height)}, c.cfg.ElementQuality)
	if err != nil {
		return crawler.Image{}, fmt.Errorf("element screenshot: %w", err)
	}
	if len(data) == 0 {
		return crawler.Image{}, ErrNoCapture
	}
	return jpegImage(data), nil
}

func (c *Capturer) clampHeight(h float64) int {
	return max(c.cfg.MinHeight, min(int(h), c.cfg.MaxHeight))
}

func (c *Capturer) clampWidth(w float64) int {
	if w <= 0 {
		return c.cfg.DefaultWidth
	}
	return min(int(w), c.cfg.MaxWidth)
}

func jpegImage(data []byte) crawler.Image {
	return crawler.Image{MIMEType: "image/jpeg", Base64: base64.StdEncoding.EncodeToString(data)}
}

const measureJS = `(() => {
  let h = Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight);
  let w = Math.max(document.body ? document.body.scrollWidth : 0, document.documentElement.scrollWidth);
  for (const el of document.querySelectorAll('*')) {
    if (el.scrollHeight > h) h = el.scrollHeight;
  }
  return {width: w, height: h};
})()`

const contentReadyJS = `(() => {
  const imgs = Array.from(document.images);
  const loaded = imgs.filter(i => i.complete && i.naturalHeight > 0).length;
  const text = document.body ? (document.body.innerText || '').length : 0;
  return (imgs.length > 0 && loaded === imgs.length) || text > 200;
})()`

func scrollToJS(y int) string {
	return "window.scrollTo(0, " + strconv.Itoa(y) + ")"
}

func elementRectJS(selector string) string {
	return `(() => {
  const el = document.querySelector(` + strconv.Quote(selector) + `) || document.body;
  const r = el.getBoundingClientRect();
  return {x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: Math.max(r.height, el.scrollHeight)};
})()`
}

func fillDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}
