package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names recognized by the pipeline
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// PipelineConfig configures the embedded telemetry pipeline
type PipelineConfig struct {
	// Endpoint is the collection endpoint events are posted to. Empty
	// disables network delivery and events go to the log sink.
	Endpoint string
	// Environment selects production or development behavior
	Environment string
	// APIKey, when set, is sent as X-Api-Key on every delivery
	APIKey string
	// DeliveryTimeout bounds each event delivery
	DeliveryTimeout time.Duration
	// DeliveryLogSize bounds the in-memory delivery outcome log
	DeliveryLogSize int
	// IdentityPath is the file holding the durable anonymous identity
	IdentityPath string
	// RedisAddr, when set, stores the identity in Redis instead of a file
	RedisAddr string
	// RedisIdentityKey is the Redis key for the shared identity
	RedisIdentityKey string
}

// CollectorConfig configures the collection service
type CollectorConfig struct {
	// ListenAddr is the HTTP listen address
	ListenAddr string
	// StorageDriver selects the event store: memory, postgres, or sqlite3
	StorageDriver string
	// DatabaseURL is the DSN for SQL-backed stores
	DatabaseURL string
	// ArchiveBucket, when set, enables periodic S3 snapshots
	ArchiveBucket string
	// ArchivePrefix is the key prefix for archive objects
	ArchivePrefix string
	// ArchiveSchedule is the cron expression driving archive runs
	ArchiveSchedule string
	// S3Region is the archive bucket's region
	S3Region string
	// S3Endpoint overrides the S3 endpoint, for local stacks
	S3Endpoint string
}

// ObservabilityConfig configures logging and process metrics
type ObservabilityConfig struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string
}

// Config is the root configuration
type Config struct {
	Pipeline      PipelineConfig
	Collector     CollectorConfig
	Observability ObservabilityConfig
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Environment:      EnvDevelopment,
			DeliveryTimeout:  5 * time.Second,
			DeliveryLogSize:  256,
			IdentityPath:     defaultIdentityPath(),
			RedisIdentityKey: "beacon:identity",
		},
		Collector: CollectorConfig{
			ListenAddr:      ":8080",
			StorageDriver:   "memory",
			ArchivePrefix:   "events",
			ArchiveSchedule: "0 * * * *",
			S3Region:        "us-east-1",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

func defaultIdentityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return dir + "/beacon/identity"
}

// LoadFromEnv builds a Config from defaults overridden by BEACON_
// environment variables.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load reads the optional YAML file at path, then applies environment
// overrides. A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Pipeline.Endpoint = getEnv("BEACON_ENDPOINT", c.Pipeline.Endpoint)
	c.Pipeline.Environment = getEnv("BEACON_ENVIRONMENT", c.Pipeline.Environment)
	c.Pipeline.APIKey = getEnv("BEACON_API_KEY", c.Pipeline.APIKey)
	c.Pipeline.DeliveryTimeout = getEnvDuration("BEACON_DELIVERY_TIMEOUT", c.Pipeline.DeliveryTimeout)
	c.Pipeline.DeliveryLogSize = getEnvInt("BEACON_DELIVERY_LOG_SIZE", c.Pipeline.DeliveryLogSize)
	c.Pipeline.IdentityPath = getEnv("BEACON_IDENTITY_PATH", c.Pipeline.IdentityPath)
	c.Pipeline.RedisAddr = getEnv("BEACON_REDIS_ADDR", c.Pipeline.RedisAddr)
	c.Pipeline.RedisIdentityKey = getEnv("BEACON_REDIS_IDENTITY_KEY", c.Pipeline.RedisIdentityKey)

	c.Collector.ListenAddr = getEnv("BEACON_LISTEN_ADDR", c.Collector.ListenAddr)
	c.Collector.StorageDriver = getEnv("BEACON_STORAGE_DRIVER", c.Collector.StorageDriver)
	c.Collector.DatabaseURL = getEnv("BEACON_DATABASE_URL", c.Collector.DatabaseURL)
	c.Collector.ArchiveBucket = getEnv("BEACON_ARCHIVE_BUCKET", c.Collector.ArchiveBucket)
	c.Collector.ArchivePrefix = getEnv("BEACON_ARCHIVE_PREFIX", c.Collector.ArchivePrefix)
	c.Collector.ArchiveSchedule = getEnv("BEACON_ARCHIVE_SCHEDULE", c.Collector.ArchiveSchedule)
	c.Collector.S3Region = getEnv("BEACON_S3_REGION", c.Collector.S3Region)
	c.Collector.S3Endpoint = getEnv("BEACON_S3_ENDPOINT", c.Collector.S3Endpoint)

	c.Observability.LogLevel = getEnv("BEACON_LOG_LEVEL", c.Observability.LogLevel)
}

// yamlConfig mirrors Config with string durations for YAML decoding
type yamlConfig struct {
	Pipeline struct {
		Endpoint         string `yaml:"endpoint"`
		Environment      string `yaml:"environment"`
		APIKey           string `yaml:"api_key"`
		DeliveryTimeout  string `yaml:"delivery_timeout"`
		DeliveryLogSize  *int   `yaml:"delivery_log_size"`
		IdentityPath     string `yaml:"identity_path"`
		RedisAddr        string `yaml:"redis_addr"`
		RedisIdentityKey string `yaml:"redis_identity_key"`
	} `yaml:"pipeline"`
	Collector struct {
		ListenAddr      string `yaml:"listen_addr"`
		StorageDriver   string `yaml:"storage_driver"`
		DatabaseURL     string `yaml:"database_url"`
		ArchiveBucket   string `yaml:"archive_bucket"`
		ArchivePrefix   string `yaml:"archive_prefix"`
		ArchiveSchedule string `yaml:"archive_schedule"`
		S3Region        string `yaml:"s3_region"`
		S3Endpoint      string `yaml:"s3_endpoint"`
	} `yaml:"collector"`
	Observability struct {
		LogLevel string `yaml:"log_level"`
	} `yaml:"observability"`
}

func (c *Config) applyYAML(data []byte) error {
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return err
	}

	setString(&c.Pipeline.Endpoint, y.Pipeline.Endpoint)
	setString(&c.Pipeline.Environment, y.Pipeline.Environment)
	setString(&c.Pipeline.APIKey, y.Pipeline.APIKey)
	setString(&c.Pipeline.IdentityPath, y.Pipeline.IdentityPath)
	setString(&c.Pipeline.RedisAddr, y.Pipeline.RedisAddr)
	setString(&c.Pipeline.RedisIdentityKey, y.Pipeline.RedisIdentityKey)
	if y.Pipeline.DeliveryTimeout != "" {
		d, err := time.ParseDuration(y.Pipeline.DeliveryTimeout)
		if err != nil {
			return fmt.Errorf("invalid pipeline.delivery_timeout: %w", err)
		}
		c.Pipeline.DeliveryTimeout = d
	}
	if y.Pipeline.DeliveryLogSize != nil {
		c.Pipeline.DeliveryLogSize = *y.Pipeline.DeliveryLogSize
	}

	setString(&c.Collector.ListenAddr, y.Collector.ListenAddr)
	setString(&c.Collector.StorageDriver, y.Collector.StorageDriver)
	setString(&c.Collector.DatabaseURL, y.Collector.DatabaseURL)
	setString(&c.Collector.ArchiveBucket, y.Collector.ArchiveBucket)
	setString(&c.Collector.ArchivePrefix, y.Collector.ArchivePrefix)
	setString(&c.Collector.ArchiveSchedule, y.Collector.ArchiveSchedule)
	setString(&c.Collector.S3Region, y.Collector.S3Region)
	setString(&c.Collector.S3Endpoint, y.Collector.S3Endpoint)

	setString(&c.Observability.LogLevel, y.Observability.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	switch c.Pipeline.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("invalid environment %q", c.Pipeline.Environment)
	}
	if c.Pipeline.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery timeout must be positive, got %s", c.Pipeline.DeliveryTimeout)
	}
	switch c.Collector.StorageDriver {
	case "memory":
	case "postgres", "sqlite3":
		if c.Collector.DatabaseURL == "" {
			return fmt.Errorf("storage driver %q requires a database URL", c.Collector.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Collector.StorageDriver)
	}
	return nil
}

// IsProduction reports whether the pipeline runs with production behavior
func (c *Config) IsProduction() bool {
	return c.Pipeline.Environment == EnvProduction
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
