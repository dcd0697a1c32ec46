// Package config loads AgentHive deployment configuration from a YAML file
// with environment variable overrides. A .env file next to the process is
// honored when present, so examples and local deployments can keep secrets
// out of the config file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment override variables. Set, they take precedence over the YAML
// values.
const (
	EnvLogLevel            = "AGENTHIVE_LOG_LEVEL"
	EnvRedisURL            = "AGENTHIVE_REDIS_URL"
	EnvSessionPoolEndpoint = "AGENTHIVE_SESSION_POOL_ENDPOINT"
)

// Config is the root deployment configuration.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Limits      LimitsConfig      `yaml:"limits"`
	Redis       RedisConfig       `yaml:"redis"`
	SessionPool SessionPoolConfig `yaml:"session_pool"`
}

// LoggingConfig controls the structured logging setup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// LimitsConfig bounds run execution.
type LimitsConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	EventBufferSize   int `yaml:"event_buffer_size"`
	MaxModelCalls     int `yaml:"max_model_calls"`
}

// Duration unmarshals YAML strings like "30s" or "1h" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RedisConfig configures the optional Redis session store. An empty URL
// selects the in-memory store.
type RedisConfig struct {
	URL       string   `yaml:"url"`
	KeyPrefix string   `yaml:"key_prefix"`
	TTL       Duration `yaml:"ttl"`
}

// SessionPoolConfig configures the remote code execution session pool
// client. The bearer token is never read from the file; TokenEnv names the
// environment variable holding it.
type SessionPoolConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	TokenEnv   string `yaml:"token_env"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Limits: LimitsConfig{
			MaxConcurrentRuns: 10,
			EventBufferSize:   100,
			MaxModelCalls:     100,
		},
		Redis:       RedisConfig{KeyPrefix: "agenthive"},
		SessionPool: SessionPoolConfig{TokenEnv: "AGENTHIVE_POOL_TOKEN"},
	}
}

// LoadOptions configure Load.
type LoadOptions struct {
	// DotenvPath points at a .env file loaded before overrides are read.
	// Default ".env"; a missing file is not an error.
	DotenvPath string
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file and returns defaults
// plus overrides.
func Load(path string, optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{DotenvPath: ".env"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.DotenvPath != "" {
		// Missing .env is the common case, not a failure.
		_ = godotenv.Load(opts.DotenvPath)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv(EnvSessionPoolEndpoint); v != "" {
		c.SessionPool.Endpoint = v
	}
}

func (c *Config) validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	if c.Limits.MaxConcurrentRuns < 0 || c.Limits.EventBufferSize < 0 || c.Limits.MaxModelCalls < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}
