// Package ingest runs the extract-normalize-apply loop that feeds the
// watch-point registry from a delivery channel. The loop never assumes a
// particular channel: Kafka, HTTP injection, and test harnesses all
// implement BatchExtractor.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Applier merges a normalized event into the canonical registry.
type Applier interface {
	Apply(ctx context.Context, event domain.NormalizedEvent) (domain.WatchPoint, error)
}

// Loop orchestrates the ingest cycle.
type Loop struct {
	extractor BatchExtractor
	applier   Applier
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Loop with the given source, registry, and observability.
func New(e BatchExtractor, a Applier, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Loop {
	return &Loop{
		extractor: e,
		applier:   a,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the loop has processed at least one
// batch, or an error describing why the service is not yet ready.
func (l *Loop) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("ingest loop has not processed any notifications yet")
	}
	return nil
}

// AnyReady reports ready as soon as any of the loops has processed a
// batch. A service fed only through one delivery channel (Kafka-only, or
// injection-only) becomes ready without the other channel seeing traffic.
type AnyReady []*Loop

// CheckReadiness returns nil when at least one loop is ready, otherwise
// the joined errors from every loop.
func (a AnyReady) CheckReadiness(ctx context.Context) error {
	if len(a) == 0 {
		return errors.New("no ingest loops configured")
	}
	errs := make([]error, 0, len(a))
	for _, l := range a {
		err := l.CheckReadiness(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run executes the ingest loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest loop started", "batch_size", l.batchSize)
	l.metrics.IngestRunning.Set(1)
	defer l.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("ingest loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !l.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-normalize-apply cycle. Returns false if
// the loop should stop.
func (l *Loop) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := l.extractor.ExtractBatch(ctx, l.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("extract batch failed", "error", err)
		return l.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	l.metrics.EventsConsumed.Add(float64(len(rawBatch)))
	l.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	for _, raw := range rawBatch {
		if err := l.processOne(ctx, raw); err != nil {
			// Storage (or unknown) failure: the offset stays uncommitted
			// and the rest of the batch is abandoned. Committing any later
			// offset would implicitly acknowledge this one, losing the
			// event; the channel redelivers everything from here on.
			l.logger.Error("apply failed, abandoning batch",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			return l.backoffOrStop(ctx, backoff, maxBackoff)
		}
	}

	l.ready.Store(true)
	return true
}

// processOne normalizes and applies a single raw event, with commit
// semantics per error class:
//
//   - ValidationError, ResolutionError: the event is unprocessable and
//     retrying cannot fix it, so discard it and commit the offset.
//   - StorageError: transient; returned to the caller so the batch stops
//     with the offset uncommitted and the channel can redeliver.
func (l *Loop) processOne(ctx context.Context, raw domain.RawEvent) error {
	event, err := domain.Normalize(raw)
	if err != nil {
		l.metrics.ValidationErrors.Inc()
		l.logger.Warn("notification rejected",
			"error", err,
			"payload_shape", domain.PayloadShape(raw.Value),
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		l.commitOffset(ctx, raw)
		return nil
	}

	_, err = l.applier.Apply(ctx, event)
	if err == nil {
		l.metrics.EventsApplied.Inc()
		l.commitOffset(ctx, raw)
		return nil
	}

	var rerr *domain.ResolutionError
	if errors.As(err, &rerr) {
		l.logger.Warn("geocoding failed, discarding event",
			"address", event.Address,
			"error", err,
		)
		l.commitOffset(ctx, raw)
		return nil
	}

	return err
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the loop should stop.
func (l *Loop) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (l *Loop) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		l.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
