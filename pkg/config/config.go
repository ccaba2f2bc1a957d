package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sift configuration.
type Config struct {
	Listen    string           `yaml:"listen"`
	LogLevel  string           `yaml:"log_level"`
	Providers []ProviderConfig `yaml:"providers"`
	Router    RouterConfig     `yaml:"router"`
	Provider  ProviderPolicy   `yaml:"provider"`
	Cache     CacheConfig      `yaml:"cache"`
	History   HistoryConfig    `yaml:"history"`
	Search    SearchConfig     `yaml:"search"`
	Auth      AuthConfig       `yaml:"auth"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Sentry    SentryConfig     `yaml:"sentry"`
}

// ProviderConfig defines an upstream search provider.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// RouterConfig maps content types to provider fallback chains.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig sends searches of one content type through an ordered list of
// providers.
type RouteConfig struct {
	ContentType string   `yaml:"content_type"`
	Providers   []string `yaml:"providers"`
}

// ProviderPolicy bounds upstream calls.
type ProviderPolicy struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend"` // memory, sqlite, redis
	TTL           time.Duration `yaml:"ttl"`
	Shards        int           `yaml:"shards"`
	DBPath        string        `yaml:"db_path"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Prefix      string        `yaml:"prefix"`
	Grace       time.Duration `yaml:"grace"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	PoolSize    int           `yaml:"pool_size"`
}

// HistoryConfig controls the history ledger.
type HistoryConfig struct {
	Backend       string        `yaml:"backend"` // memory, sqlite, postgres
	DSN           string        `yaml:"dsn"`
	RetentionDays int           `yaml:"retention_days"`
	AppendTimeout time.Duration `yaml:"append_timeout"`
}

// SearchConfig bounds request paging.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// MetricsConfig controls the Prometheus endpoint and gauge refresh.
type MetricsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CollectInterval time.Duration `yaml:"collect_interval"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Provider: ProviderPolicy{
			Timeout: 10 * time.Second,
			Burst:   1,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       "sqlite",
			TTL:           time.Hour,
			Shards:        32,
			DBPath:        "sift-cache.db",
			SweepInterval: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "sift:cache:",
				Grace:  time.Minute,
			},
		},
		History: HistoryConfig{
			Backend:       "sqlite",
			DSN:           "sift-history.db",
			AppendTimeout: 5 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Auth: AuthConfig{
			Issuer: "sift",
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			CollectInterval: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "sift",
			SampleRate:  0.1,
		},
		Sentry: SentryConfig{
			Environment: "development",
			SampleRate:  1.0,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive")
		}
		switch c.Cache.Backend {
		case "memory":
		case "sqlite":
			if c.Cache.DBPath == "" {
				return fmt.Errorf("cache.db_path is required for the sqlite backend")
			}
		case "redis":
			if c.Cache.Redis.Addr == "" {
				return fmt.Errorf("cache.redis.addr is required for the redis backend")
			}
		default:
			return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
		}
	}
	switch c.History.Backend {
	case "memory":
	case "sqlite", "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the %s backend", c.History.Backend)
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.History.AppendTimeout <= 0 {
		return fmt.Errorf("history.append_timeout must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits must satisfy 0 < default_limit <= max_limit")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" || p.URL == "" {
			return fmt.Errorf("every provider needs a name and url")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
