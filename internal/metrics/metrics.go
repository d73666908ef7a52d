// Package metrics exposes Prometheus collectors for the crawl pipeline and its HTTP surface.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	programsUpsertedTotal      *prometheus.CounterVec
	itemErrorsTotal            *prometheus.CounterVec
	llmCallsTotal              *prometheus.CounterVec
	capturesTotal              *prometheus.CounterVec
	captureChunks              prometheus.Histogram
	pacingDelaySeconds         *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "programs_fetch_attempts_total",
				Help: "Static page fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "programs_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		programsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "programs_upserted_total",
				Help: "Program records written, labeled by source and whether the record was created or updated.",
			},
			[]string{"source", "result"},
		)

		itemErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "programs_item_errors_total",
				Help: "Per-item and per-page crawl failures, labeled by source and stage.",
			},
			[]string{"source", "stage"},
		)

		llmCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "programs_llm_calls_total",
				Help: "LLM extraction calls, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "programs_captures_total",
				Help: "Rendering captures, labeled by outcome (viewer, element, none).",
			},
			[]string{"outcome"},
		)

		captureChunks = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "programs_capture_chunks",
				Help:    "Number of screenshot chunks produced per capture.",
				Buckets: []float64{1, 2, 3, 4, 5, 6},
			},
		)

		pacingDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "programs_pacing_delay_seconds",
				Help:    "Histogram of inter-request pacing waits.",
				Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5, 10},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(rawURL string, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveUpsert records a stored program.
func ObserveUpsert(source string, created bool) {
	Init()
	result := "updated"
	if created {
		result = "created"
	}
	programsUpsertedTotal.WithLabelValues(source, result).Inc()
}

// ObserveItemError records a failure accumulated into a crawl result.
func ObserveItemError(source, stage string) {
	Init()
	itemErrorsTotal.WithLabelValues(source, stage).Inc()
}

// ObserveLLMCall records one LLM strategy invocation.
func ObserveLLMCall(strategy, outcome string) {
	Init()
	llmCallsTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveCapture records the outcome of a rendering capture and how many chunks it produced.
func ObserveCapture(outcome string, chunks int) {
	Init()
	capturesTotal.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		captureChunks.Observe(float64(chunks))
	}
}

// ObservePacingDelay records the duration of a pacing wait.
func ObservePacingDelay(domain string, duration time.Duration) {
	Init()
	pacingDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
