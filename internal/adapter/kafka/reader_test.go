package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestMapMessageToRawEvent(t *testing.T) {
	ts := time.Date(2025, 4, 26, 9, 30, 0, 0, time.UTC)
	msg := kafkago.Message{
		Topic:     "smoke-events",
		Partition: 2,
		Offset:    41,
		Key:       []byte("hansung-univ-gate"),
		Value:     []byte(`{"address":"Hansung University","status":"smoking"}`),
		Time:      ts,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("camera-7")},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, "smoke-events", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(41), raw.Offset)
	assert.Equal(t, []byte("hansung-univ-gate"), raw.Key)
	assert.Equal(t, []byte(`{"address":"Hansung University","status":"smoking"}`), raw.Value)
	assert.Equal(t, ts, raw.Timestamp)
	assert.Equal(t, map[string]string{
		"source":       "camera-7",
		"content-type": "application/json",
	}, raw.Headers)
}

func TestMapMessageToRawEvent_NoHeaders(t *testing.T) {
	raw := mapMessageToRawEvent(kafkago.Message{Value: []byte("{}")})

	assert.Empty(t, raw.Headers)
	assert.Nil(t, raw.Commit)
}
