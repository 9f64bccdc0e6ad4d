package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all environment configuration
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	Endpoint string `env:"ENDPOINT" envDefault:"http://localhost"` // base of every queue URL
	Backend  string `env:"BACKEND" envDefault:"memory"`

	DatabaseURL         string        `env:"DATABASE_URL"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" envDefault:"5s"`
	RedisAddr           string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix         string        `env:"REDIS_PREFIX" envDefault:"sqsmock"`

	// VisibilityTimeout is the default for queues created without one.
	VisibilityTimeout time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"30s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`
	LongPollInterval  time.Duration `env:"LONG_POLL_INTERVAL" envDefault:"0s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	// QueueCacheTTL bounds how long a server trusts cached queue settings.
	// Negative disables the cache.
	QueueCacheTTL time.Duration `env:"QUEUE_CACHE_TTL" envDefault:"5s"`

	// DefaultQueueURL is used by message operations that omit QueueUrl.
	DefaultQueueURL string `env:"DEFAULT_QUEUE_URL"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig parses the environment, applies overrides in order and
// validates the result.
func LoadConfig(overrides ...func(*Config)) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that env parsing alone cannot.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	switch c.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid BACKEND: %q", c.Backend)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid SWEEP_INTERVAL: %s", c.SweepInterval)
	}
	if c.LongPollInterval < 0 {
		return fmt.Errorf("invalid LONG_POLL_INTERVAL: %s", c.LongPollInterval)
	}
	// The request timeout must outlast the longest receive wait.
	if c.RequestTimeout <= 20*time.Second {
		return fmt.Errorf("REQUEST_TIMEOUT must exceed 20s, got %s", c.RequestTimeout)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ENDPOINT: %q", c.Endpoint)
	}
	if c.DefaultQueueURL != "" {
		u, err := url.Parse(c.DefaultQueueURL)
		if err != nil || u.Scheme == "" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return fmt.Errorf("invalid DEFAULT_QUEUE_URL: %q", c.DefaultQueueURL)
		}
	}
	return nil
}
