package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jkang1643/Exbabel-sub010/internal/caption"
	"github.com/jkang1643/Exbabel-sub010/internal/resilience"
)

// Config holds all configuration for the caption client
type Config struct {
	// Server configuration (health and metrics only)
	Port string `envconfig:"PORT" default:"9090"`

	// Caption source: a websocket URL, or a JSON-lines trace to replay
	CaptionsURL string `envconfig:"CAPTIONS_URL" default:""`
	ReplayFile  string `envconfig:"REPLAY_FILE" default:""`

	// Engine configuration. SourceLang equal to Lang selects transcription
	// mode; MaxCommittedLines 0 means unbounded.
	Lang              string `envconfig:"CAPTIONS_LANG" required:"true"`
	SourceLang        string `envconfig:"CAPTIONS_SOURCE_LANG" default:""`
	MaxCommittedLines int    `envconfig:"MAX_COMMITTED_LINES" default:"0"`
	HistoryHorizon    int    `envconfig:"HISTORY_HORIZON" default:"32"`
	Debug             bool   `envconfig:"CAPTIONS_DEBUG" default:"false"`

	// Reconnect configuration. Jitter is a ±fraction of the backoff.
	ReconnectEnabled bool    `envconfig:"RECONNECT_ENABLED" default:"true"`
	ReconnectBaseMs  int     `envconfig:"RECONNECT_BASE_MS" default:"500"`
	ReconnectMaxMs   int     `envconfig:"RECONNECT_MAX_MS" default:"30000"`
	ReconnectJitter  float64 `envconfig:"RECONNECT_JITTER" default:"0.2"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the combinations envconfig cannot express
func (c *Config) Validate() error {
	if c.Lang == "" {
		return fmt.Errorf("CAPTIONS_LANG is required")
	}
	if c.CaptionsURL == "" && c.ReplayFile == "" {
		return fmt.Errorf("one of CAPTIONS_URL or REPLAY_FILE is required")
	}
	if c.MaxCommittedLines < 0 {
		return fmt.Errorf("MAX_COMMITTED_LINES must be >= 0, got %d", c.MaxCommittedLines)
	}
	if c.HistoryHorizon < 0 {
		return fmt.Errorf("HISTORY_HORIZON must be >= 0, got %d", c.HistoryHorizon)
	}
	if c.ReconnectBaseMs <= 0 || c.ReconnectMaxMs < c.ReconnectBaseMs {
		return fmt.Errorf("RECONNECT_BASE_MS must be > 0 and <= RECONNECT_MAX_MS")
	}
	if c.ReconnectJitter < 0 || c.ReconnectJitter >= 1 {
		return fmt.Errorf("RECONNECT_JITTER must be in [0, 1), got %v", c.ReconnectJitter)
	}
	return nil
}

// EngineOptions maps the configuration onto caption engine options
func (c *Config) EngineOptions() caption.Options {
	return caption.Options{
		Lang:              c.Lang,
		SourceLang:        c.SourceLang,
		Debug:             c.Debug,
		MaxCommittedLines: c.MaxCommittedLines,
		HistoryHorizon:    c.HistoryHorizon,
	}
}

// ReconnectConfig returns the transport backoff policy. Attempts are
// unlimited; the supervisor stops retrying on Disconnect.
func (c *Config) ReconnectConfig() *resilience.ReconnectConfig {
	return &resilience.ReconnectConfig{
		MaxAttempts: 0,
		Backoff:     time.Duration(c.ReconnectBaseMs) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  time.Duration(c.ReconnectMaxMs) * time.Millisecond,
		Jitter:      c.ReconnectJitter,
	}
}
