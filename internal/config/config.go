// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers an optional YAML file and GRIDSTAT_ environment variables
//   over the defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/gridstat/internal/adapters/repository"
	"github.com/okian/gridstat/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BackendURL is the base URL of the stats backend.
	BackendURL     string        `koanf:"backend_url"`
	BackendToken   string        `koanf:"backend_token"`
	BackendTimeout time.Duration `koanf:"backend_timeout"`
	// BackendRPS caps backend requests per second; zero or less is unlimited.
	BackendRPS float64 `koanf:"backend_rps"`

	// StoreDriver selects the durable store: memory, redis or postgres.
	StoreDriver   string `koanf:"store_driver"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	PostgresURL   string `koanf:"postgres_url"`

	// MemoryCacheSize bounds each session's in-memory tier.
	MemoryCacheSize int `koanf:"memory_cache_size"`

	StatsTTL    time.Duration `koanf:"stats_ttl"`
	RulesTTL    time.Duration `koanf:"rules_ttl"`
	RankingsTTL time.Duration `koanf:"rankings_ttl"`

	// TotalWeekPolicy is "independent" or "required".
	TotalWeekPolicy string `koanf:"total_week_policy"`

	WarmQueueSize   int `koanf:"warm_queue_size"`
	WarmWorkerCount int `koanf:"warm_worker_count"`

	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout"`
	// DefaultLeague is the league new sessions start with.
	DefaultLeague string `koanf:"default_league"`

	// CORSAllowOrigins is a comma separated origin list.
	CORSAllowOrigins string `koanf:"cors_allow_origins"`

	// RateLimitRequests per RateLimitWindow per client IP; zero disables.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// New creates a Config holding the defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		BackendURL:         "http://localhost:8000",
		BackendTimeout:     30 * time.Second,
		BackendRPS:         10,
		StoreDriver:        repository.DriverMemory,
		RedisAddr:          "localhost:6379",
		MemoryCacheSize:    4096,
		StatsTTL:           60 * time.Minute,
		RulesTTL:           24 * time.Hour,
		RankingsTTL:        24 * time.Hour,
		TotalWeekPolicy:    string(model.TotalIndependent),
		WarmQueueSize:      1024,
		WarmWorkerCount:    4,
		SessionIdleTimeout: 30 * time.Minute,
		CORSAllowOrigins:   "*",
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// Origins splits CORSAllowOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Policy returns the parsed total week policy.
func (c *Config) Policy() model.TotalPolicy {
	p, err := model.ParseTotalPolicy(c.TotalWeekPolicy)
	if err != nil {
		return model.TotalIndependent
	}
	return p
}

// StoreSettings returns the store connection settings.
func (c *Config) StoreSettings() repository.Settings {
	return repository.Settings{
		Driver:        c.StoreDriver,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		PostgresURL:   c.PostgresURL,
	}
}

// Validate checks the fields Load cannot type-check.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.BackendURL) == "":
		return fmt.Errorf("%w: backend_url must not be empty", ErrInvalidConfig)
	case c.BackendTimeout <= 0:
		return fmt.Errorf("%w: backend_timeout must be positive", ErrInvalidConfig)
	case c.StatsTTL <= 0 || c.RulesTTL <= 0 || c.RankingsTTL <= 0:
		return fmt.Errorf("%w: ttls must be positive", ErrInvalidConfig)
	case c.MemoryCacheSize < 0:
		return fmt.Errorf("%w: memory_cache_size must not be negative", ErrInvalidConfig)
	case c.WarmQueueSize <= 0:
		return fmt.Errorf("%w: warm_queue_size must be positive", ErrInvalidConfig)
	case c.WarmWorkerCount < 0:
		return fmt.Errorf("%w: warm_worker_count must not be negative", ErrInvalidConfig)
	case c.SessionIdleTimeout <= 0:
		return fmt.Errorf("%w: session_idle_timeout must be positive", ErrInvalidConfig)
	case c.RateLimitRequests < 0:
		return fmt.Errorf("%w: rate_limit_requests must not be negative", ErrInvalidConfig)
	case c.RateLimitRequests > 0 && c.RateLimitWindow <= 0:
		return fmt.Errorf("%w: rate_limit_window must be positive", ErrInvalidConfig)
	}

	if _, err := model.ParseTotalPolicy(c.TotalWeekPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.StoreDriver {
	case repository.DriverMemory:
	case repository.DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis store", ErrInvalidConfig)
		}
	case repository.DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("%w: postgres_url is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}
