package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "smoke-events", cfg.KafkaTopic)
	assert.Equal(t, "smoke-watching", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 7, cfg.StatsWindowDays)
	assert.False(t, cfg.MapboxEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SMOKE_WATCH_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("SMOKE_WATCH_KAFKA_TOPIC", "notifications")
	t.Setenv("SMOKE_WATCH_BATCH_SIZE", "25")
	t.Setenv("SMOKE_WATCH_LOG_FORMAT", "text")
	t.Setenv("SMOKE_WATCH_TIMEZONE", "Asia/Seoul")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "notifications", cfg.KafkaTopic)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, "text", cfg.LogFormat)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero batch size", key: "SMOKE_WATCH_BATCH_SIZE", value: "0"},
		{name: "negative window", key: "SMOKE_WATCH_STATS_WINDOW_DAYS", value: "-1"},
		{name: "empty topic", key: "SMOKE_WATCH_KAFKA_TOPIC", value: ""},
		{name: "bad timezone", key: "SMOKE_WATCH_TIMEZONE", value: "Mars/Olympus"},
		{name: "zero flush interval", key: "SMOKE_WATCH_BATCH_FLUSH_INTERVAL", value: "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MapboxEnabledRequiresToken(t *testing.T) {
	t.Setenv("SMOKE_WATCH_MAPBOX_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")

	t.Setenv("SMOKE_WATCH_MAPBOX_TOKEN", "pk.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLocation_DefaultIsLocal(t *testing.T) {
	cfg := &Config{}

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
