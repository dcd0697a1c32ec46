package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", func(o *LoadOptions) { o.DotenvPath = "" })
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Limits.MaxConcurrentRuns)
	assert.Equal(t, "agenthive", cfg.Redis.KeyPrefix)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  format: json
limits:
  max_model_calls: 5
redis:
  url: redis://localhost:6379/0
  ttl: 1h
session_pool:
  endpoint: https://pool.example.com
  api_version: 2024-02-02-preview
`)
	cfg, err := Load(path, func(o *LoadOptions) { o.DotenvPath = "" })
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Limits.MaxModelCalls)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, time.Hour, cfg.Redis.TTL.Std())
	assert.Equal(t, "https://pool.example.com", cfg.SessionPool.Endpoint)
	// Unset fields keep their defaults.
	assert.Equal(t, 10, cfg.Limits.MaxConcurrentRuns)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvRedisURL, "redis://override:6379/1")

	cfg, err := Load("", func(o *LoadOptions) { o.DotenvPath = "" })
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "redis://override:6379/1", cfg.Redis.URL)
}

func TestLoad_DotenvFeedsOverrides(t *testing.T) {
	envPath := writeFile(t, ".env", EnvSessionPoolEndpoint+"=https://dotenv.example.com\n")

	cfg, err := Load("", func(o *LoadOptions) { o.DotenvPath = envPath })
	require.NoError(t, err)
	assert.Equal(t, "https://dotenv.example.com", cfg.SessionPool.Endpoint)
	os.Unsetenv(EnvSessionPoolEndpoint)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "logging:\n  level: loud\n")
	_, err := Load(path, func(o *LoadOptions) { o.DotenvPath = "" })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), func(o *LoadOptions) { o.DotenvPath = "" })
	assert.Error(t, err)
}
