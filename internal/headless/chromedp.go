package headless

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the chromedp browser.
type Config struct {
	// MaxTabs bounds concurrently open tabs; zero means one.
	MaxTabs   int
	UserAgent string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// LaunchTimeout bounds browser startup.
	LaunchTimeout time.Duration
}

// ChromeLauncher starts headless Chrome through chromedp.
type ChromeLauncher struct {
	cfg    Config
	logger *zap.Logger
}

var _ Launcher = (*ChromeLauncher)(nil)

// NewChromeLauncher creates a launcher.
func NewChromeLauncher(cfg Config, logger *zap.Logger) *ChromeLauncher {
	if cfg.MaxTabs <= 0 {
		cfg.MaxTabs = 1
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{cfg: cfg, logger: logger}
}

// Launch starts the browser process and waits for it to accept commands.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "ko-KR"),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	launchCtx, launchCancel := context.WithTimeout(ctx, l.cfg.LaunchTimeout)
	defer launchCancel()
	stopForward := forwardCancel(launchCtx, browserCancel)
	err := chromedp.Run(browserCtx)
	stopForward()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	l.logger.Info("headless browser started", zap.Int("max_tabs", l.cfg.MaxTabs))

	return &chromeBrowser{
		cfg:           l.cfg,
		logger:        l.logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		sem:           make(chan struct{}, l.cfg.MaxTabs),
	}, nil
}

type chromeBrowser struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	sem           chan struct{}
}

// NewPage opens a tab in the shared browser.
func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire tab slot: %w", ctx.Err())
	}
	release := func() { <-b.sem }

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	// The first Run binds the target to tabCtx itself, so it must not carry a caller deadline.
	stopForward := forwardCancel(ctx, tabCancel)
	err := chromedp.Run(tabCtx, network.Enable())
	stopForward()
	if err != nil {
		tabCancel()
		release()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: tabCancel, release: release, userAgent: b.cfg.UserAgent}, nil
}

// Close shuts down the browser process.
func (b *chromeBrowser) Close() error {
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("headless browser closed")
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	release   func()
	userAgent string
	closed    bool
}

// run executes actions on the tab, bounded by the caller's deadline and cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url, referrer string) error {
	extra := http.Header{}
	if referrer != "" {
		extra.Set("Referer", referrer)
	}
	actions := []chromedp.Action{network.SetExtraHTTPHeaders(toNetworkHeaders(extra))}
	if p.userAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(p.userAgent).WithAcceptLanguage("ko-KR,ko"))
	}
	actions = append(actions, chromedp.Navigate(url))
	return p.run(ctx, actions...)
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) FrameURLs(ctx context.Context) ([]string, error) {
	var tree *page.FrameTree
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	}))
	if err == nil && tree != nil {
		return childFrameURLs(tree), nil
	}
	// Some viewer pages block frame-tree queries; fall back to the DOM.
	var srcs []string
	if evalErr := p.Eval(ctx, iframeSourcesJS, &srcs); evalErr != nil {
		return nil, fmt.Errorf("list frames: %w", evalErr)
	}
	return srcs, nil
}

func (p *chromePage) Eval(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *chromePage) SetViewport(ctx context.Context, width, height int64) error {
	return p.run(ctx, chromedp.EmulateViewport(width, height))
}

func (p *chromePage) Screenshot(ctx context.Context, clip Clip, quality int) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(quality)).
			WithCaptureBeyondViewport(true).
			WithClip(&page.Viewport{X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height, Scale: 1}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	p.release()
	return nil
}

const iframeSourcesJS = `Array.from(document.querySelectorAll('iframe')).map(f => f.src || '').filter(Boolean)`

func childFrameURLs(tree *page.FrameTree) []string {
	var urls []string
	var walk func(nodes []*page.FrameTree)
	walk = func(nodes []*page.FrameTree) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if n.Frame != nil && n.Frame.URL != "" {
				urls = append(urls, n.Frame.URL+n.Frame.URLFragment)
			}
			walk(n.ChildFrames)
		}
	}
	walk(tree.ChildFrames)
	return urls
}

// forwardCancel calls cancel when parent is done, until the returned stop func runs.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// toNetworkHeaders converts request headers into the CDP representation.
func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
