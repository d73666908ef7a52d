package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/startup-programs-crawler/internal/config"
	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
	"github.com/JakeFAU/startup-programs-crawler/internal/metrics"
)

// CrawlRunner runs crawl passes.
type CrawlRunner interface {
	CrawlAll(ctx context.Context, sources []crawler.Source, opts crawler.CrawlOptions) map[crawler.Source]crawler.Result
}

// ReextractRunner runs re-extraction passes.
type ReextractRunner interface {
	Run(ctx context.Context, opts crawler.ReextractOptions) crawler.Result
}

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

const probeTimeout = 5 * time.Second

// Server wires HTTP handlers to the crawl and re-extraction runners.
type Server struct {
	router    chi.Router
	crawl     CrawlRunner
	reextract ReextractRunner
	ready     ReadyFunc
	cfg       config.Config
	logger    *zap.Logger

	// busy admits one pass at a time; passes are strictly sequential.
	busy sync.Mutex
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(
	crawl CrawlRunner,
	reextract ReextractRunner,
	ready ReadyFunc,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawl:     crawl,
		reextract: reextract,
		ready:     ready,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/crawl", s.runCrawl)
		r.Post("/reextract", s.runReextract)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// crawlRequest uses pointers so omitted knobs fall back to configured defaults.
type crawlRequest struct {
	Sources         []string `json:"sources"`
	MaxPages        *int     `json:"maxPages"`
	FetchDetails    *bool    `json:"fetchDetails"`
	EnableRendering *bool    `json:"enableRendering"`
	TargetID        string   `json:"targetId"`
	Limit           *int     `json:"limit"`
}

func (s *Server) runCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sources, opts, err := s.toCrawlOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.busy.TryLock() {
		writeError(w, http.StatusConflict, "a pass is already running")
		return
	}
	defer s.busy.Unlock()

	s.logger.Info("crawl requested",
		zap.Any("sources", sources),
		zap.Int("max_pages", opts.MaxPages),
		zap.Bool("fetch_details", opts.FetchDetails),
		zap.Bool("enable_rendering", opts.EnableRendering),
		zap.String("target_id", opts.TargetID),
		zap.Int("limit", opts.Limit),
	)
	writeJSON(w, http.StatusOK, s.crawl.CrawlAll(r.Context(), sources, opts))
}

func (s *Server) toCrawlOptions(req crawlRequest) ([]crawler.Source, crawler.CrawlOptions, error) {
	opts := s.cfg.DefaultCrawlOptions()
	if req.MaxPages != nil {
		if *req.MaxPages <= 0 {
			return nil, opts, errors.New("maxPages must be > 0")
		}
		opts.MaxPages = *req.MaxPages
	}
	if req.FetchDetails != nil {
		opts.FetchDetails = *req.FetchDetails
	}
	if req.EnableRendering != nil {
		opts.EnableRendering = *req.EnableRendering
	}
	if req.Limit != nil {
		if *req.Limit < 0 {
			return nil, opts, errors.New("limit must be >= 0")
		}
		opts.Limit = *req.Limit
	}
	opts.TargetID = strings.TrimSpace(req.TargetID)

	sources := crawler.Sources()
	if len(req.Sources) > 0 {
		sources = nil
		for _, raw := range req.Sources {
			source, err := crawler.ParseSource(strings.TrimSpace(raw))
			if err != nil {
				return nil, opts, err
			}
			sources = append(sources, source)
		}
	}
	if opts.TargetID != "" && len(sources) != 1 {
		return nil, opts, errors.New("targetId requires exactly one source")
	}
	return sources, opts, nil
}

func (s *Server) runReextract(w http.ResponseWriter, r *http.Request) {
	var opts crawler.ReextractOptions
	if err := decodeBody(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be >= 0")
		return
	}
	if !s.busy.TryLock() {
		writeError(w, http.StatusConflict, "a pass is already running")
		return
	}
	defer s.busy.Unlock()

	s.logger.Info("re-extraction requested", zap.Int("limit", opts.Limit), zap.Bool("force", opts.Force))
	res := s.reextract.Run(r.Context(), opts)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// decodeBody accepts an empty body as "all defaults".
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
