package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axia.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "archive"

[executor]
workers = 8
command_deadline = "45s"

[venue]
kind = "mt5"
[venue.mt5]
base_url = "http://bridge:8080"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "archive", cfg.Mode)
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, 45*time.Second, cfg.Executor.CommandDeadline.Duration)
	assert.Equal(t, "mt5", cfg.Venue.Kind)
	// Untouched sections keep their defaults.
	assert.Equal(t, "axia:commands", cfg.Queue.Stream)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AXIA_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("AXIA_EXECUTOR_WORKERS", "2")
	t.Setenv("AXIA_NOTIFY_EVENTS", "critical_inconsistency, gate_blocked")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Executor.Workers)
	assert.Equal(t, []string{"critical_inconsistency", "gate_blocked"}, cfg.Notify.Events)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "panic"
	cfg.Executor.Workers = 0
	cfg.Venue.Kind = "carrier-pigeon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Venue.MT5.APIToken = "token"
	cfg.Notify.TelegramToken = "bot:123"

	red := Redacted(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Venue.MT5.APIToken)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
