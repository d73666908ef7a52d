// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/startup-programs-crawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Headless HeadlessConfig `mapstructure:"headless"`
	LLM      LLMConfig      `mapstructure:"llm"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs fetching, pacing, and the default pass shape.
type CrawlerConfig struct {
	UserAgent             string `mapstructure:"user_agent"`
	AcceptLanguage        string `mapstructure:"accept_language"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	FetchAttempts         int    `mapstructure:"fetch_attempts"`
	FetchBackoffMs        int    `mapstructure:"fetch_backoff_ms"`
	DelayMs               int    `mapstructure:"delay_ms"`
	MaxPages              int    `mapstructure:"max_pages"`
	Limit                 int    `mapstructure:"limit"`
}

// SourcesConfig overrides the base URL of each source site.
type SourcesConfig struct {
	KStartup string `mapstructure:"kstartup"`
	Bizinfo  string `mapstructure:"bizinfo"`
}

// HeadlessConfig configures the rendering tier.
type HeadlessConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	NavAttempts       int    `mapstructure:"nav_attempts"`
	NavRetryPauseMs   int    `mapstructure:"nav_retry_pause_ms"`
	MaxChunks         int    `mapstructure:"max_chunks"`
	ChunkHeight       int    `mapstructure:"chunk_height"`
	ExecPath          string `mapstructure:"exec_path"`
}

// LLMConfig configures the extraction provider.
type LLMConfig struct {
	APIKey               string  `mapstructure:"api_key"`
	Model                string  `mapstructure:"model"`
	VisionModel          string  `mapstructure:"vision_model"`
	Temperature          float64 `mapstructure:"temperature"`
	VisionTimeoutSeconds int     `mapstructure:"vision_timeout_seconds"`
	PaceMs               int     `mapstructure:"pace_ms"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int    `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// StorageConfig selects the capture archive backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for upsert notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Load builds a Config from disk/environment. A .env file in the working directory is read first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PROGRAMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("crawler.accept_language", "ko-KR,ko;q=0.9,en;q=0.8")
	v.SetDefault("crawler.request_timeout_seconds", 30)
	v.SetDefault("crawler.fetch_attempts", 3)
	v.SetDefault("crawler.fetch_backoff_ms", 2000)
	v.SetDefault("crawler.delay_ms", 1500)
	v.SetDefault("crawler.max_pages", 1)
	v.SetDefault("crawler.limit", 0)
	v.SetDefault("sources.kstartup", "")
	v.SetDefault("sources.bizinfo", "")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 90)
	v.SetDefault("headless.nav_attempts", 3)
	v.SetDefault("headless.nav_retry_pause_ms", 5000)
	v.SetDefault("headless.max_chunks", 6)
	v.SetDefault("headless.chunk_height", 3000)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.vision_model", "")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.vision_timeout_seconds", 180)
	v.SetDefault("llm.pace_ms", 1000)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "programs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.base_dir", "data/captures")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "captures")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.FetchAttempts <= 0 {
		return fmt.Errorf("crawler.fetch_attempts must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Headless.Enabled && c.Headless.NavAttempts <= 0 {
		return fmt.Errorf("headless.nav_attempts must be > 0 when headless is enabled")
	}
	if c.Headless.MaxChunks < 0 || c.Headless.ChunkHeight < 0 {
		return fmt.Errorf("headless.max_chunks and headless.chunk_height must be >= 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// RequestTimeout bounds one static fetch attempt.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}

// PacingInterval is the fixed delay between requests to one host.
func (c Config) PacingInterval() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// FetchRetryPolicy is the static fetch policy: FetchAttempts tries, linear backoff.
func (c Config) FetchRetryPolicy() crawler.RetryPolicy {
	p := crawler.NewFetchRetryPolicy()
	p.MaxAttempts = c.Crawler.FetchAttempts
	if c.Crawler.FetchBackoffMs > 0 {
		p.Backoff = crawler.LinearBackoff(time.Duration(c.Crawler.FetchBackoffMs) * time.Millisecond)
	}
	return p
}

// NavigationRetryPolicy is the browser navigation policy.
func (c Config) NavigationRetryPolicy() crawler.RetryPolicy {
	p := crawler.NewNavigationRetryPolicy()
	if c.Headless.NavAttempts > 0 {
		p.MaxAttempts = c.Headless.NavAttempts
	}
	if c.Headless.NavRetryPauseMs > 0 {
		p.Backoff = crawler.ConstantBackoff(time.Duration(c.Headless.NavRetryPauseMs) * time.Millisecond)
	}
	return p
}

// LLMPace is the pause between consecutive re-extraction calls.
func (c Config) LLMPace() time.Duration {
	return time.Duration(c.LLM.PaceMs) * time.Millisecond
}

// DefaultCrawlOptions seeds a pass from configuration; callers override per request.
func (c Config) DefaultCrawlOptions() crawler.CrawlOptions {
	return crawler.CrawlOptions{
		MaxPages:        c.Crawler.MaxPages,
		FetchDetails:    true,
		EnableRendering: c.Headless.Enabled,
		Limit:           c.Crawler.Limit,
	}
}

// BaseURL returns the configured base URL override for source ("" keeps the built-in default).
func (c Config) BaseURL(source crawler.Source) string {
	switch source {
	case crawler.SourceKStartup:
		return c.Sources.KStartup
	case crawler.SourceBizinfo:
		return c.Sources.Bizinfo
	default:
		return ""
	}
}
