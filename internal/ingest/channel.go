package ingest

import (
	"context"
	"errors"

	"github.com/sperola37/smoke-watching/internal/domain"
)

// ErrSourceFull is returned by Inject when the buffer is at capacity.
var ErrSourceFull = errors.New("event source buffer full")

// ChannelSource is an in-process BatchExtractor backed by a buffered
// channel. The HTTP injection endpoint and test harnesses produce into
// it; the ingest loop consumes from it like any other delivery channel.
type ChannelSource struct {
	ch chan domain.RawEvent
}

// NewChannelSource creates a source with the given buffer capacity.
func NewChannelSource(capacity int) *ChannelSource {
	return &ChannelSource{ch: make(chan domain.RawEvent, capacity)}
}

// Inject queues one raw event without blocking. Returns ErrSourceFull if
// the buffer is at capacity.
func (s *ChannelSource) Inject(raw domain.RawEvent) error {
	select {
	case s.ch <- raw:
		return nil
	default:
		return ErrSourceFull
	}
}

// ExtractBatch blocks for the first event, then drains up to batchSize-1
// more without waiting.
func (s *ChannelSource) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	var batch []domain.RawEvent

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw := <-s.ch:
		batch = append(batch, raw)
	}

	for len(batch) < batchSize {
		select {
		case raw := <-s.ch:
			batch = append(batch, raw)
		default:
			return batch, nil
		}
	}
	return batch, nil
}
