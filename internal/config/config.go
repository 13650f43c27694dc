// Package config loads tickflow's runtime configuration from environment
// variables (optionally seeded by a .env file), the same layered approach
// used across the service's sibling deployments.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable of the ingest/normalize/broadcast pipeline and
// its satellite components.
type Config struct {
	// Ingest side
	IngestAddr   string `env:"TICKFLOW_INGEST_ADDR" envDefault:":9000"`
	MaxFrameSize uint32 `env:"TICKFLOW_MAX_FRAME_SIZE" envDefault:"16777216"`

	// Subscriber side
	SubscriberAddr string  `env:"TICKFLOW_SUBSCRIBER_ADDR" envDefault:":9100"`
	RateLimit      float64 `env:"TICKFLOW_RATE_LIMIT" envDefault:"100"`
	BurstSize      float64 `env:"TICKFLOW_BURST_SIZE" envDefault:"200"`

	// Normalizer
	WindowMs        int64 `env:"TICKFLOW_WINDOW_MS" envDefault:"200"`
	SmoothingWindow int   `env:"TICKFLOW_SMOOTHING_WINDOW" envDefault:"5"`

	// Admin HTTP
	AdminAddr string `env:"TICKFLOW_ADMIN_ADDR" envDefault:":9200"`

	// Persistence
	LogPath string `env:"TICKFLOW_LOG_PATH" envDefault:"normalized_log.csv"`

	// NATS fan-out (disabled when URL is empty)
	NATSUrl             string        `env:"NATS_URL" envDefault:""`
	NATSSubjectPrefix   string        `env:"TICKFLOW_NATS_SUBJECT_PREFIX" envDefault:"ticks"`
	NATSMaxReconnects   int           `env:"TICKFLOW_NATS_MAX_RECONNECTS" envDefault:"60"`
	NATSReconnectWait   time.Duration `env:"TICKFLOW_NATS_RECONNECT_WAIT" envDefault:"2s"`
	NATSReconnectJitter time.Duration `env:"TICKFLOW_NATS_RECONNECT_JITTER" envDefault:"1s"`
	NATSMaxPingsOut     int           `env:"TICKFLOW_NATS_MAX_PINGS_OUT" envDefault:"2"`
	NATSPingInterval    time.Duration `env:"TICKFLOW_NATS_PING_INTERVAL" envDefault:"2m"`

	// WebSocket bridge listen address (disjoint port from the admin surface).
	// tickflowd does not bind it; the standalone `tickflowctl wsbridge`
	// command takes its listen address from its own --listen flag.
	WSBridgeAddr string `env:"TICKFLOW_WSBRIDGE_ADDR" envDefault:":9300"`

	// Ingest accept-loop backoff, applied on repeated accept errors
	AcceptBackoffRate  float64 `env:"TICKFLOW_ACCEPT_BACKOFF_RATE" envDefault:"10"`
	AcceptBackoffBurst int     `env:"TICKFLOW_ACCEPT_BACKOFF_BURST" envDefault:"5"`

	// Logging
	LogLevel  string `env:"TICKFLOW_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TICKFLOW_LOG_FORMAT" envDefault:"json"`

	// Process tuning
	MetricsInterval time.Duration `env:"TICKFLOW_METRICS_INTERVAL" envDefault:"5s"`
}

// Load reads a .env file if present (ignored if missing) and then parses
// environment variables into a Config, applying defaults and validating.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks invariants that env.Parse's type coercion alone can't enforce.
func (c *Config) Validate() error {
	if c.WindowMs < 0 {
		return fmt.Errorf("TICKFLOW_WINDOW_MS must be >= 0, got %d", c.WindowMs)
	}
	if c.SmoothingWindow < 0 {
		return fmt.Errorf("TICKFLOW_SMOOTHING_WINDOW must be >= 0, got %d", c.SmoothingWindow)
	}
	if c.RateLimit < 0 || c.BurstSize < 0 {
		return fmt.Errorf("rate limit and burst size must be >= 0")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("TICKFLOW_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("TICKFLOW_LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}
	return nil
}
