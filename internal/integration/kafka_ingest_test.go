//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/sperola37/smoke-watching/internal/adapter/kafka"
	"github.com/sperola37/smoke-watching/internal/adapter/sqlite"
	"github.com/sperola37/smoke-watching/internal/config"
	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/ingest"
	"github.com/sperola37/smoke-watching/internal/observability"
	"github.com/sperola37/smoke-watching/internal/registry"
	"github.com/sperola37/smoke-watching/internal/stats"
)

const testTopic = "test-smoke-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve broker addresses")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func publish(ctx context.Context, t *testing.T, broker string, payloads ...domain.RawPayload) {
	t.Helper()

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(payloads))
	for _, p := range payloads {
		value, err := json.Marshal(p)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(p.Address),
			Value: value,
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// TestKafkaReaderRoundTrip verifies the adapter layer: a published message
// arrives as a raw event with metadata and a working commit callback.
func TestKafkaReaderRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		KafkaGroupID:       fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}

	payload := domain.RawPayload{
		Address: "Hansung University",
		Status:  "smoking",
		Photo:   "https://example.com/cam7.jpg",
	}
	publish(ctx, t, broker, payload)

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	raw := batch[0]
	assert.Equal(t, []byte("Hansung University"), raw.Key)
	assert.Equal(t, testTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	var got domain.RawPayload
	require.NoError(t, json.Unmarshal(raw.Value, &got))
	assert.Equal(t, payload, got)
}

// TestIngestEndToEnd wires Kafka → ingest loop → registry → SQLite and
// verifies canonical state, durable history, and the aggregate view.
func TestIngestEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		KafkaGroupID:       fmt.Sprintf("test-ingest-%d", time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	publish(ctx, t, broker,
		domain.RawPayload{
			Address:    "Hansung University",
			Status:     "smoking",
			OccurredAt: base.Format(time.RFC3339),
			Latitude:   "37.5826",
			Longitude:  "127.0101",
		},
		domain.RawPayload{}, // poison pill: no address, no status
		domain.RawPayload{
			Address:    "Hansung University",
			Status:     "smoking",
			OccurredAt: base.Add(10 * time.Minute).Format(time.RFC3339),
			Latitude:   "37.5826",
			Longitude:  "127.0101",
		},
		domain.RawPayload{
			Address:    "Hansung University",
			Status:     "clear",
			OccurredAt: base.Add(20 * time.Minute).Format(time.RFC3339),
			Latitude:   "37.5826",
			Longitude:  "127.0101",
		},
	)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	reg := registry.New(nil, store, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	t.Cleanup(func() { _ = reader.Close() })

	loop := ingest.New(reader, reg, logger, metrics, 50)

	loopCtx, loopCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(loopCtx) }()

	// Wait until the clear event lands and the point settles.
	require.Eventually(t, func() bool {
		point, ok := reg.Get("Hansung University")
		return ok && point.Status == domain.StatusClear
	}, 90*time.Second, 200*time.Millisecond, "watch point never settled to clear")

	loopCancel()
	require.NoError(t, <-errCh)

	point, ok := reg.Get("Hansung University")
	require.True(t, ok)
	assert.Equal(t, 37.5826, point.Coordinates.Latitude)
	assert.Equal(t, 127.0101, point.Coordinates.Longitude)
	assert.Equal(t, base.Add(20*time.Minute), point.UpdatedAt)
	assert.Equal(t, 1, reg.Len(), "poison pill must not create a watch point")

	// Only the two alerts are historized; the clear event is state-only.
	history, err := store.ReadAll(ctx, "Hansung University")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, base, history[0].Timestamp)
	assert.Equal(t, base.Add(10*time.Minute), history[1].Timestamp)

	engine := stats.New(store, logger, metrics, time.UTC)
	snapshot, err := engine.ComputeSnapshot(ctx, time.Now().UTC(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.PerLocationCounts["Hansung University"])
}

// TestIngestRestartRebuildsRegistry verifies that a fresh registry recovers
// canonical state from the history file alone.
func TestIngestRestartRebuildsRegistry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaTopic:         testTopic,
		KafkaGroupID:       fmt.Sprintf("test-rebuild-%d", time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}

	publish(ctx, t, broker, domain.RawPayload{
		Address:   "Sungshin Women's University",
		Status:    "smoking",
		Latitude:  "37.5919",
		Longitude: "127.0227",
	})

	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := sqlite.Open(dbPath)
	require.NoError(t, err)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	reg := registry.New(nil, store, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	loop := ingest.New(reader, reg, logger, metrics, 10)

	loopCtx, loopCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(loopCtx) }()

	require.Eventually(t, func() bool {
		_, ok := reg.Get("Sungshin Women's University")
		return ok
	}, 90*time.Second, 200*time.Millisecond)

	loopCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, reader.Close())
	require.NoError(t, store.Close())

	// Simulate a restart: reopen the file and rebuild a new registry.
	reopened, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	// Rebuild without a resolver: coordinates cannot be recovered, so the
	// point is skipped rather than resurrected with a zero location.
	rebuilt := registry.New(nil, reopened, logger, observability.NewMetricsForTesting())
	require.NoError(t, rebuilt.Rebuild(ctx))
	assert.Equal(t, 0, rebuilt.Len())

	// History survives regardless.
	history, err := reopened.ReadAll(ctx, "Sungshin Women's University")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
