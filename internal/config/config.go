// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime knob for the watch-point service. All values
// come from SMOKE_WATCH_-prefixed environment variables.
type Config struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"smoke-events"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID" default:"smoke-watching"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	BatchSize          int           `envconfig:"BATCH_SIZE" default:"100"`
	BatchFlushInterval time.Duration `envconfig:"BATCH_FLUSH_INTERVAL" default:"2s"`
	InjectBuffer       int           `envconfig:"INJECT_BUFFER" default:"256"`

	SQLitePath string `envconfig:"SQLITE_PATH" default:""`

	MapboxEnabled   bool          `envconfig:"MAPBOX_ENABLED" default:"false"`
	MapboxToken     string        `envconfig:"MAPBOX_TOKEN" default:""`
	MapboxTimeout   time.Duration `envconfig:"MAPBOX_TIMEOUT" default:"5s"`
	MapboxCacheSize int           `envconfig:"MAPBOX_CACHE_SIZE" default:"512"`

	StatsWindowDays int    `envconfig:"STATS_WINDOW_DAYS" default:"7"`
	Timezone        string `envconfig:"TIMEZONE" default:""`
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SMOKE_WATCH", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("at least one Kafka broker is required")
	}
	if c.KafkaTopic == "" {
		return fmt.Errorf("Kafka topic is required")
	}
	if c.KafkaGroupID == "" {
		return fmt.Errorf("Kafka group id is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchFlushInterval <= 0 {
		return fmt.Errorf("batch flush interval must be positive, got %s", c.BatchFlushInterval)
	}
	if c.InjectBuffer <= 0 {
		return fmt.Errorf("inject buffer must be positive, got %d", c.InjectBuffer)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return fmt.Errorf("Mapbox token is required when geocoding is enabled")
	}
	if c.MapboxCacheSize <= 0 {
		return fmt.Errorf("Mapbox cache size must be positive, got %d", c.MapboxCacheSize)
	}
	if c.StatsWindowDays <= 0 {
		return fmt.Errorf("stats window must be positive, got %d", c.StatsWindowDays)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. An empty value means the
// host's local zone, matching how the aggregation engine buckets hours.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
