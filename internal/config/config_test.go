package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "http://localhost", cfg.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.VisibilityTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Zero(t, cfg.LongPollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.QueueCacheTTL)
	assert.Empty(t, cfg.DefaultQueueURL)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9324")
	t.Setenv("BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/sqsmock")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("LONG_POLL_INTERVAL", "250ms")
	t.Setenv("ENDPOINT", "http://sqs.local:9324")
	t.Setenv("QUEUE_CACHE_TTL", "-1s")
	t.Setenv("DEFAULT_QUEUE_URL", "http://sqs.local:9324/default")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9324, cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.LongPollInterval)
	assert.Equal(t, "http://sqs.local:9324", cfg.Endpoint)
	assert.Equal(t, -time.Second, cfg.QueueCacheTTL)
	assert.Equal(t, "http://sqs.local:9324/default", cfg.DefaultQueueURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT"},
		{"port not a number", map[string]string{"PORT": "abc"}, "parse env"},
		{"unknown backend", map[string]string{"BACKEND": "mongo"}, "BACKEND"},
		{"postgres without dsn", map[string]string{"BACKEND": "postgres"}, "DATABASE_URL"},
		{"zero sweep interval", map[string]string{"SWEEP_INTERVAL": "0s"}, "SWEEP_INTERVAL"},
		{"short request timeout", map[string]string{"REQUEST_TIMEOUT": "10s"}, "REQUEST_TIMEOUT"},
		{"relative endpoint", map[string]string{"ENDPOINT": "localhost"}, "ENDPOINT"},
		{"default queue without name", map[string]string{"DEFAULT_QUEUE_URL": "http://localhost/"}, "DEFAULT_QUEUE_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("BACKEND", "postgres")

	cfg, err := LoadConfig(func(c *Config) { c.Backend = BackendRedis }, func(c *Config) { c.Port = 9324 })
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, 9324, cfg.Port)

	cfg, err = LoadConfig(func(c *Config) { c.DefaultQueueURL = "http://localhost/bound" })
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/bound", cfg.DefaultQueueURL)

	_, err = LoadConfig(func(c *Config) { c.Port = 0 })
	assert.Error(t, err)
}
