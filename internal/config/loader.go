package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over the defaults, then applies AXIA_*
// environment overrides. The result has NOT been validated; call
// Config.Validate afterwards. A missing file is fine when path is empty.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Pick up a local .env if one exists.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject values, most importantly secrets,
// at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.DSN, "AXIA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AXIA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AXIA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AXIA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AXIA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AXIA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AXIA_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AXIA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AXIA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AXIA_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "AXIA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AXIA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AXIA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AXIA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AXIA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AXIA_REDIS_TLS_ENABLED")

	setStr(&cfg.Queue.Stream, "AXIA_QUEUE_STREAM")
	setStr(&cfg.Queue.Group, "AXIA_QUEUE_GROUP")
	setDuration(&cfg.Queue.Visibility, "AXIA_QUEUE_VISIBILITY")
	setInt64(&cfg.Queue.MaxLen, "AXIA_QUEUE_MAX_LEN")

	setStr(&cfg.Venue.Kind, "AXIA_VENUE_KIND")
	setStr(&cfg.Venue.MT5.BaseURL, "AXIA_VENUE_MT5_BASE_URL")
	setStr(&cfg.Venue.MT5.WsURL, "AXIA_VENUE_MT5_WS_URL")
	setStr(&cfg.Venue.MT5.APIToken, "AXIA_VENUE_MT5_API_TOKEN")
	setDuration(&cfg.Venue.MT5.Timeout, "AXIA_VENUE_MT5_TIMEOUT")
	setStringSlice(&cfg.Venue.MT5.Symbols, "AXIA_VENUE_MT5_SYMBOLS")

	setInt(&cfg.Executor.Workers, "AXIA_EXECUTOR_WORKERS")
	setDuration(&cfg.Executor.CommandDeadline, "AXIA_EXECUTOR_COMMAND_DEADLINE")
	setInt(&cfg.Executor.RetryAttempts, "AXIA_EXECUTOR_RETRY_ATTEMPTS")
	setDuration(&cfg.Executor.RetryBaseDelay, "AXIA_EXECUTOR_RETRY_BASE_DELAY")
	setDuration(&cfg.Executor.RefreshInterval, "AXIA_EXECUTOR_REFRESH_INTERVAL")
	setDuration(&cfg.Executor.GateCacheTTL, "AXIA_EXECUTOR_GATE_CACHE_TTL")

	setBool(&cfg.S3.Enabled, "AXIA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AXIA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AXIA_S3_REGION")
	setStr(&cfg.S3.Bucket, "AXIA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AXIA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AXIA_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "AXIA_S3_FORCE_PATH_STYLE")

	setInt(&cfg.Archive.RetentionDays, "AXIA_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.BatchLimit, "AXIA_ARCHIVE_BATCH_LIMIT")

	setStr(&cfg.Notify.TelegramToken, "AXIA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AXIA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AXIA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AXIA_NOTIFY_EVENTS")

	setBool(&cfg.Metrics.Enabled, "AXIA_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "AXIA_METRICS_ADDR")

	setStr(&cfg.Mode, "AXIA_MODE")
	setStr(&cfg.LogLevel, "AXIA_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
