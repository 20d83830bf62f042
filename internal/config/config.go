// Package config defines the controller configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// duration lets TOML files use human-readable values like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the root structure. Fields come from a TOML file and can be
// overridden by AXIA_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Queue    QueueConfig    `toml:"queue"`
	Venue    VenueConfig    `toml:"venue"`
	Executor ExecutorConfig `toml:"executor"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds the state store connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the queue/cache connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// QueueConfig holds the command stream parameters.
type QueueConfig struct {
	Stream     string   `toml:"stream"`
	Group      string   `toml:"group"`
	Visibility duration `toml:"visibility"`
	MaxLen     int64    `toml:"max_len"`
}

// VenueConfig selects and configures the execution venue. Kind is "mt5" or
// "paper".
type VenueConfig struct {
	Kind string `toml:"kind"`

	MT5 MT5Config `toml:"mt5"`
}

// MT5Config holds the terminal bridge endpoints and credentials.
type MT5Config struct {
	BaseURL  string   `toml:"base_url"`
	WsURL    string   `toml:"ws_url"`
	APIToken string   `toml:"api_token"`
	Timeout  duration `toml:"timeout"`
	Symbols  []string `toml:"symbols"`
}

// ExecutorConfig tunes the consumer loop and the persistence retry budget.
type ExecutorConfig struct {
	Workers         int      `toml:"workers"`
	CommandDeadline duration `toml:"command_deadline"`
	RetryAttempts   int      `toml:"retry_attempts"`
	RetryBaseDelay  duration `toml:"retry_base_delay"`
	RefreshInterval duration `toml:"refresh_interval"`
	GateCacheTTL    duration `toml:"gate_cache_ttl"`
}

// S3Config holds the archive object store parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig tunes the cold-state export.
type ArchiveConfig struct {
	RetentionDays int `toml:"retention_days"`
	BatchLimit    int `toml:"batch_limit"`
}

// NotifyConfig holds the operator alert channels. Empty Events forwards
// everything.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Defaults returns the configuration used when a field is absent from the
// TOML file.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "axia",
			User:          "axia",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Queue: QueueConfig{
			Stream:     "axia:commands",
			Group:      "executors",
			Visibility: duration{60 * time.Second},
			MaxLen:     10000,
		},
		Venue: VenueConfig{
			Kind: "paper",
			MT5: MT5Config{
				BaseURL: "http://localhost:8080",
				WsURL:   "ws://localhost:8080/ticks",
				Timeout: duration{10 * time.Second},
				Symbols: []string{"EURUSD"},
			},
		},
		Executor: ExecutorConfig{
			Workers:         4,
			CommandDeadline: duration{30 * time.Second},
			RetryAttempts:   3,
			RetryBaseDelay:  duration{time.Second},
			RefreshInterval: duration{5 * time.Second},
			GateCacheTTL:    duration{2 * time.Second},
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			BatchLimit:    10000,
		},
		Notify: NotifyConfig{
			Events: []string{"critical_inconsistency", "order_failed"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"run":     true,
	"halt":    true,
	"resume":  true,
	"status":  true,
	"enqueue": true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks for obviously broken values and returns every problem
// found in one error.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, halt, resume, status, enqueue, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Queue.Stream == "" {
		errs = append(errs, "queue: stream must not be empty")
	}
	if c.Queue.Group == "" {
		errs = append(errs, "queue: group must not be empty")
	}
	if c.Queue.Visibility.Duration <= 0 {
		errs = append(errs, "queue: visibility must be positive")
	}

	switch c.Venue.Kind {
	case "paper":
	case "mt5":
		if c.Venue.MT5.BaseURL == "" {
			errs = append(errs, "venue: mt5.base_url must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("venue: unknown kind %q (valid: mt5, paper)", c.Venue.Kind))
	}

	if c.Executor.Workers < 1 {
		errs = append(errs, "executor: workers must be >= 1")
	}
	if c.Executor.CommandDeadline.Duration <= 0 {
		errs = append(errs, "executor: command_deadline must be positive")
	}
	if c.Executor.RetryAttempts < 1 {
		errs = append(errs, "executor: retry_attempts must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}
	if c.Archive.RetentionDays < 1 {
		errs = append(errs, "archive: retention_days must be >= 1")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
