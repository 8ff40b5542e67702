package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment
// variables (and an optional .env file). Per-worker poll/claim timing lives
// in WorkerSettings (internal/config/workers.go), loaded separately from a
// YAML file since it doesn't flatten cleanly into env vars.
type Config struct {
	DBPath   string `envconfig:"PAYPROC_DB_PATH" default:"./data/payments.sqlite"`
	Port     int    `envconfig:"PAYPROC_PORT" default:"8080"`
	LogLevel string `envconfig:"PAYPROC_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"PAYPROC_LOG_DIR" default:"./logs"`

	// WorkerInstanceID identifies this orchestrator process in claimed_by
	// columns, so stuck-claim recovery logs can attribute a claim to the
	// process that made it. Defaults to hostname:pid at startup if unset.
	WorkerInstanceID string `envconfig:"PAYPROC_INSTANCE_ID"`

	MaxPaymentsPerBatch int `envconfig:"PAYPROC_MAX_PAYMENTS_PER_BATCH" default:"100"`
	MaxRetries          int `envconfig:"PAYPROC_MAX_RETRIES" default:"5"`
	MaxCycles           int `envconfig:"PAYPROC_MAX_CYCLES" default:"2"`
	ConfirmationDepth   int `envconfig:"PAYPROC_CONFIRMATION_DEPTH" default:"10"`

	WalletAPIURL string `envconfig:"PAYPROC_WALLET_API_URL" default:"http://127.0.0.1:9100"`
	BaseNodeURL  string `envconfig:"PAYPROC_BASE_NODE_URL" default:"http://127.0.0.1:9200"`

	ConsoleWalletCommand  string `envconfig:"PAYPROC_CONSOLE_WALLET_CMD"`
	ConsoleWalletLockfile string `envconfig:"PAYPROC_CONSOLE_WALLET_LOCKFILE" default:"./data/console-wallet.lock"`

	WorkersConfigFile string `envconfig:"PAYPROC_WORKERS_CONFIG" default:"./config/workers.yaml"`

	SignerConcurrency int `envconfig:"PAYPROC_SIGNER_CONCURRENCY" default:"2"`
}

// Load reads configuration from a .env file (if present) then from
// environment variables. Environment variables override .env values.
func Load() (*Config, error) {
	// Load .env file if it exists. godotenv does NOT override already-set env vars,
	// so real environment variables take precedence over .env values.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if cfg.WorkerInstanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown-host"
		}
		cfg.WorkerInstanceID = fmt.Sprintf("%s:%d", hostname, os.Getpid())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.MaxPaymentsPerBatch < 1 {
		return fmt.Errorf("%w: max_payments_per_batch must be >= 1, got %d", ErrInvalidConfig, c.MaxPaymentsPerBatch)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.MaxCycles < 1 {
		return fmt.Errorf("%w: max_cycles must be >= 1, got %d", ErrInvalidConfig, c.MaxCycles)
	}
	if c.ConfirmationDepth < 1 {
		return fmt.Errorf("%w: confirmation_depth must be >= 1, got %d", ErrInvalidConfig, c.ConfirmationDepth)
	}
	if c.SignerConcurrency < 1 {
		return fmt.Errorf("%w: signer_concurrency must be >= 1, got %d", ErrInvalidConfig, c.SignerConcurrency)
	}
	return nil
}
