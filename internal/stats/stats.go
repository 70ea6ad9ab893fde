// Package stats derives time-windowed aggregate statistics from the
// history store. It reads only durable state, never the in-memory
// registry, so statistics remain available across process restarts and
// tolerate a corpus that is being appended to while the scan runs.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/observability"
)

// DefaultWindowDays is the trailing window applied when a caller does not
// specify one.
const DefaultWindowDays = 7

// Engine computes aggregate snapshots over the history store.
type Engine struct {
	store   domain.HistoryStore
	logger  *slog.Logger
	metrics *observability.Metrics
	loc     *time.Location
}

// New creates an aggregation engine. Hour-of-day and weekday bucketing use
// loc; pass nil for local time.
func New(store domain.HistoryStore, logger *slog.Logger, metrics *observability.Metrics, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{store: store, logger: logger, metrics: metrics, loc: loc}
}

// ComputeSnapshot scans every address in the store and accumulates
// statistics over the trailing window [now − windowDays, now]. The lower
// boundary is inclusive: an entry exactly windowDays old still counts.
//
// Addresses whose history cannot be read are skipped with a warning —
// statistics are a best-effort view, not a source of truth. Only a failure
// to enumerate addresses aborts the scan.
//
// WeekdayCounts follows time.Weekday indexing: slot 0 is Sunday.
func (e *Engine) ComputeSnapshot(ctx context.Context, now time.Time, windowDays int) (domain.AggregateSnapshot, error) {
	start := time.Now()
	defer func() {
		e.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}()

	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	cutoff := now.AddDate(0, 0, -windowDays)

	snapshot := domain.AggregateSnapshot{
		WindowStart:       cutoff,
		WindowEnd:         now,
		PerLocationCounts: make(map[string]int),
	}

	addresses, err := e.store.ListAddresses(ctx)
	if err != nil {
		return domain.AggregateSnapshot{}, &domain.StorageError{Op: "list", Err: err}
	}

	for _, address := range addresses {
		entries, err := e.store.ReadAll(ctx, address)
		if err != nil {
			e.metrics.SnapshotAddressesSkipped.Inc()
			e.logger.Warn("history unreadable, skipping address in snapshot", "address", address, "error", err)
			continue
		}

		for _, entry := range entries {
			if entry.Timestamp.Before(cutoff) {
				continue
			}
			local := entry.Timestamp.In(e.loc)
			snapshot.PerLocationCounts[address]++
			snapshot.HourOfDayPoints = append(snapshot.HourOfDayPoints, domain.HourPoint{
				Hour:    local.Hour(),
				Address: address,
			})
			snapshot.WeekdayCounts[int(local.Weekday())]++
		}
	}

	return snapshot, nil
}
