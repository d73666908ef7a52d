// Package ratelimit paces requests against each source host with a fixed minimum interval.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/startup-programs-crawler/internal/metrics"
)

// DefaultInterval is the delay enforced between consecutive requests to one host.
const DefaultInterval = 1500 * time.Millisecond

// Limiter manages per-host pacing.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// Config holds limiter configuration.
type Config struct {
	// Interval is the minimum spacing between requests to the same host. Zero disables pacing.
	Interval time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until the host of rawURL may be requested again, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := hostOf(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(l.limit, 1)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	// Immediate grants are not delays.
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObservePacingDelay(domain, d)
	}
	return nil
}

// Done restarts the host's interval when a request completes.
func (l *Limiter) Done(rawURL string) {
	if l.limit == rate.Inf {
		return
	}
	limiter := rate.NewLimiter(l.limit, 1)
	limiter.Allow()

	l.mu.Lock()
	l.limiters[hostOf(rawURL)] = limiter
	l.mu.Unlock()
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "unknown"
}
