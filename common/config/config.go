// Package config provides centralized configuration management for all
// EventLake services.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config is the master configuration struct containing all service configs
// and shared infrastructure.
type Config struct {
	// Service-specific configurations
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Transform TransformConfig `mapstructure:"transform"`

	// Shared infrastructure configurations
	NATS       NATSConfig       `mapstructure:"nats"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DLQ        DLQConfig        `mapstructure:"dlq"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// IngestConfig holds stream ingestion service configuration.
type IngestConfig struct {
	// Shard is the stream shard this instance consumes. Empty means all.
	Shard string `mapstructure:"shard"`

	// BatchSize is the maximum records pulled per invocation.
	BatchSize int `mapstructure:"batch_size"`

	// BatchWait is how long a fetch waits for a full batch.
	BatchWait time.Duration `mapstructure:"batch_wait"`

	// ValidationEnabled toggles per-record validation. Disabled, records
	// pass through with provenance stamped but unchecked.
	ValidationEnabled bool `mapstructure:"validation_enabled"`

	// MetricsPort serves Prometheus metrics and health checks.
	MetricsPort int `mapstructure:"metrics_port"`
}

// TransformConfig holds object transformation service configuration.
type TransformConfig struct {
	// RawPrefix is the object-key prefix that identifies raw objects.
	RawPrefix string `mapstructure:"raw_prefix"`

	// ObjectSuffix is the object-key suffix that identifies data objects.
	ObjectSuffix string `mapstructure:"object_suffix"`

	// MetricsPort serves Prometheus metrics and health checks.
	MetricsPort int `mapstructure:"metrics_port"`

	// Enrichment holds classification thresholds.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
}

// EnrichmentConfig holds the classification thresholds applied during
// transformation. Zero values fall back to the standard bands.
type EnrichmentConfig struct {
	AmountSmall       float64 `mapstructure:"amount_small"`
	AmountMedium      float64 `mapstructure:"amount_medium"`
	AmountLarge       float64 `mapstructure:"amount_large"`
	HighValueOver     float64 `mapstructure:"high_value_over"`
	SessionMedium     float64 `mapstructure:"session_medium"`
	SessionLong       float64 `mapstructure:"session_long"`
	ValueLow          float64 `mapstructure:"value_low"`
	ValueNormal       float64 `mapstructure:"value_normal"`
	AnomalyLowerBound float64 `mapstructure:"anomaly_lower_bound"`
	AnomalyUpperBound float64 `mapstructure:"anomaly_upper_bound"`
}

// NATSConfig holds NATS message broker configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx-compatible connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the idempotency guard.
type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	KeyTTL     time.Duration `mapstructure:"key_ttl"`
}

// OpenSearchConfig holds OpenSearch connection settings for the optional
// analytics indexer.
type OpenSearchConfig struct {
	URL               string        `mapstructure:"url"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	Enabled           bool          `mapstructure:"enabled"`
	TLSSkipVerify     bool          `mapstructure:"tls_skip_verify"`
	IndexPrefix       string        `mapstructure:"index_prefix"`
	BulkBatchSize     int           `mapstructure:"bulk_batch_size"`
	BulkFlushInterval time.Duration `mapstructure:"bulk_flush_interval"`
}

// StorageConfig holds object store settings.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// DLQConfig holds dead letter queue configuration.
type DLQConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MustLoad loads the configuration and panics on error.
// This initializes the global singleton.
func MustLoad(serviceName string) {
	once.Do(func() {
		cfg, err := Load(serviceName)
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		globalConfig = cfg
	})
}

// GetConfig returns the global configuration singleton.
// Panics if MustLoad has not been called first.
func GetConfig() *Config {
	if globalConfig == nil {
		panic("config not initialized - call MustLoad first")
	}
	return globalConfig
}

// Load reads configuration from $EVENTLAKE_CONFIG_DIR/config.yaml and
// environment variables. All services load the one config.yaml; the
// serviceName parameter is reserved for per-service overrides.
func Load(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	configDir := os.Getenv("EVENTLAKE_CONFIG_DIR")
	if configDir == "" {
		configDir = "/etc/eventlake"
	}

	configPath := fmt.Sprintf("%s/config.yaml", configDir)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variables override with no prefix
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file - don't fail if file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found - continue with defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	// Ingest service defaults
	v.SetDefault("ingest.shard", "")
	v.SetDefault("ingest.batch_size", 100)
	v.SetDefault("ingest.batch_wait", "5s")
	v.SetDefault("ingest.validation_enabled", true)
	v.SetDefault("ingest.metrics_port", 9101)

	// Transform service defaults
	v.SetDefault("transform.raw_prefix", "raw/")
	v.SetDefault("transform.object_suffix", ".json")
	v.SetDefault("transform.metrics_port", 9102)
	v.SetDefault("transform.enrichment.amount_small", 10)
	v.SetDefault("transform.enrichment.amount_medium", 100)
	v.SetDefault("transform.enrichment.amount_large", 1000)
	v.SetDefault("transform.enrichment.high_value_over", 1000)
	v.SetDefault("transform.enrichment.session_medium", 60)
	v.SetDefault("transform.enrichment.session_long", 300)
	v.SetDefault("transform.enrichment.value_low", 10)
	v.SetDefault("transform.enrichment.value_normal", 100)
	v.SetDefault("transform.enrichment.anomaly_lower_bound", 0)
	v.SetDefault("transform.enrichment.anomaly_upper_bound", 100)

	// NATS defaults
	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Database defaults
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "eventlake")
	v.SetDefault("database.postgres.user", "eventlake")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_ttl", "24h")

	// OpenSearch defaults
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index_prefix", "eventlake")
	v.SetDefault("opensearch.bulk_batch_size", 1000)
	v.SetDefault("opensearch.bulk_flush_interval", "5s")

	// Storage defaults
	v.SetDefault("storage.bucket", "eventlake")

	// DLQ defaults
	v.SetDefault("dlq.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
