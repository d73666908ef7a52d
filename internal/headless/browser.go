// Package headless drives a headless browser to capture documents embedded in viewer widgets.
package headless

import (
	"context"
	"time"
)

// Browser owns the browser process shared by one crawl pass.
type Browser interface {
	// NewPage opens a tab; callers must Close it when the item is done.
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts a Browser. A launch failure aborts the whole crawl pass.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Clip is a capture rectangle in CSS pixels.
type Clip struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and waits for the load event. A non-empty referrer is sent as Referer.
	Navigate(ctx context.Context, url, referrer string) error
	WaitVisible(ctx context.Context, selector string) error
	WaitReady(ctx context.Context, selector string) error
	// FrameURLs lists the URLs of every child frame in the tab.
	FrameURLs(ctx context.Context) ([]string, error)
	// Eval runs a JavaScript expression and decodes its JSON result into out (nil discards it).
	Eval(ctx context.Context, script string, out any) error
	SetViewport(ctx context.Context, width, height int64) error
	// Screenshot captures clip as JPEG at the given quality.
	Screenshot(ctx context.Context, clip Clip, quality int) ([]byte, error)
	Close() error
}

// WaitBestEffort runs wait under timeout and reports whether it succeeded. Expiry is an ordinary
// false, not an error.
func WaitBestEffort(ctx context.Context, timeout time.Duration, wait func(context.Context) error) bool {
	if timeout <= 0 {
		return wait(ctx) == nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wait(waitCtx) == nil
}
