package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, EnvDevelopment, cfg.Pipeline.Environment)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.DeliveryTimeout)
	assert.Equal(t, ":8080", cfg.Collector.ListenAddr)
	assert.Equal(t, "memory", cfg.Collector.StorageDriver)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BEACON_ENDPOINT", "https://collect.example.com/v1/events")
	t.Setenv("BEACON_ENVIRONMENT", "production")
	t.Setenv("BEACON_DELIVERY_TIMEOUT", "2s")
	t.Setenv("BEACON_DELIVERY_LOG_SIZE", "64")
	t.Setenv("BEACON_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()

	assert.Equal(t, "https://collect.example.com/v1/events", cfg.Pipeline.Endpoint)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 2*time.Second, cfg.Pipeline.DeliveryTimeout)
	assert.Equal(t, 64, cfg.Pipeline.DeliveryLogSize)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  endpoint: https://collect.example.com/v1/events
  environment: production
  delivery_timeout: 3s
collector:
  listen_addr: ":9090"
  storage_driver: postgres
  database_url: postgres://localhost/beacon
observability:
  log_level: warn
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://collect.example.com/v1/events", cfg.Pipeline.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.DeliveryTimeout)
	assert.Equal(t, ":9090", cfg.Collector.ListenAddr)
	assert.Equal(t, "postgres", cfg.Collector.StorageDriver)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  endpoint: https://from-file.example.com
`), 0o600))
	t.Setenv("BEACON_ENDPOINT", "https://from-env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.Pipeline.Endpoint)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load("/nonexistent/beacon.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  delivery_timeout: sometime
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad environment", func(c *Config) { c.Pipeline.Environment = "staging" }, "invalid environment"},
		{"zero timeout", func(c *Config) { c.Pipeline.DeliveryTimeout = 0 }, "delivery timeout"},
		{"unknown driver", func(c *Config) { c.Collector.StorageDriver = "mysql" }, "unknown storage driver"},
		{"postgres without dsn", func(c *Config) { c.Collector.StorageDriver = "postgres" }, "requires a database URL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
