// Package config loads the proxy configuration from an optional YAML file
// with environment-variable overrides. Configuration is read once at
// process start and treated as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grepotools/grepodata-proxy/pkg/logging"
	"github.com/grepotools/grepodata-proxy/pkg/upstream"
)

// Duration decodes YAML values like "15m" or "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration surface of the proxy.
type Config struct {
	// Listen is the HTTP listen address (e.g., ":3000")
	Listen string `yaml:"listen"`

	Origin   Origin   `yaml:"origin"`
	Cache    Cache    `yaml:"cache"`
	Coalesce Coalesce `yaml:"coalesce"`
	CORS     CORS     `yaml:"cors"`
	Log      Log      `yaml:"log"`
}

// Origin configures the upstream API.
type Origin struct {
	// BaseURL is the origin URL template with {world} and {file} placeholders
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one origin fetch attempt
	Timeout Duration `yaml:"timeout"`

	// UserAgent identifies the proxy to the origin
	UserAgent string `yaml:"user_agent"`
}

// Cache configures the in-memory store.
type Cache struct {
	// Capacity is the maximum number of cached entries
	Capacity int `yaml:"capacity"`

	// TTL holds per-datafile TTL overrides (e.g., "players.txt": "15m")
	TTL map[string]Duration `yaml:"ttl"`
}

// Coalesce configures the single-flight behavior.
type Coalesce struct {
	// WaitTimeout bounds how long a request waits on another caller's
	// in-flight fetch. Zero means origin timeout plus a grace period.
	WaitTimeout Duration `yaml:"wait_timeout"`
}

// CORS configures the cross-origin headers attached to every response.
type CORS struct {
	// AllowedOrigin is the Access-Control-Allow-Origin value
	AllowedOrigin string `yaml:"allowed_origin"`
}

// Log configures logging.
type Log struct {
	Level  logging.LogLevel `yaml:"level"`
	Pretty bool             `yaml:"pretty"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Listen: ":3000",
		Origin: Origin{
			BaseURL:   upstream.DefaultBaseURL,
			Timeout:   Duration(10 * time.Second),
			UserAgent: "grepodata-proxy/1.0 (+https://github.com/grepotools/grepodata-proxy)",
		},
		Cache: Cache{
			Capacity: 128,
		},
		CORS: CORS{
			AllowedOrigin: "*",
		},
		Log: Log{
			Level: logging.LevelInfo,
		},
	}
}

// Load reads the configuration from path (optional, "" skips the file),
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("ORIGIN_BASE_URL"); v != "" {
		cfg.Origin.BaseURL = v
	}
	if v := os.Getenv("ORIGIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Origin.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("ORIGIN_USER_AGENT"); v != "" {
		cfg.Origin.UserAgent = v
	}
	if v := os.Getenv("CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Capacity = n
		}
	}
	if v := os.Getenv("COALESCE_WAIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Coalesce.WaitTimeout = Duration(d)
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGIN"); v != "" {
		cfg.CORS.AllowedOrigin = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = logging.LogLevel(v)
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = v == "true" || v == "1"
	}
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Origin.BaseURL == "" {
		return fmt.Errorf("origin.base_url is required")
	}
	if c.Origin.Timeout.Std() <= 0 {
		return fmt.Errorf("origin.timeout must be positive")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive")
	}
	if c.CORS.AllowedOrigin == "" {
		return fmt.Errorf("cors.allowed_origin is required")
	}
	return nil
}

// WaitTimeout resolves the effective follower wait deadline: configured
// value, or the origin timeout plus a two second grace period.
func (c Config) WaitTimeout() time.Duration {
	if c.Coalesce.WaitTimeout.Std() > 0 {
		return c.Coalesce.WaitTimeout.Std()
	}
	return c.Origin.Timeout.Std() + 2*time.Second
}
