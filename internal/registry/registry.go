// Package registry maintains the canonical, address-keyed set of watch
// points. It is a rebuildable cache over the history store: the store is
// the source of truth, the registry the live read model for map markers.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sperola37/smoke-watching/internal/domain"
	"github.com/sperola37/smoke-watching/internal/observability"
)

// Registry applies normalized events to an in-memory map of watch points
// and appends alert history durably before mutating the map.
//
// Applies for the same address are serialized; distinct addresses proceed
// concurrently. Update policy is a monotonic merge: an event whose
// OccurredAt is older than the stored UpdatedAt never regresses
// status/photo/updatedAt, though an alert event still appends history
// (history is sorted by timestamp downstream, so arrival order there is
// irrelevant).
type Registry struct {
	resolver domain.Resolver
	store    domain.HistoryStore
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu     sync.RWMutex
	points map[string]*domain.WatchPoint

	lockMu sync.Mutex
	locks  map[string]*addressLock
}

// addressLock serializes applies for one address. Entries are refcounted
// and dropped from the map when idle; addresses are unbounded free text,
// so the map must not retain one mutex per address ever seen.
type addressLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty registry. The resolver may be nil, in which case
// events for unknown addresses succeed only when they carry a coordinate
// hint.
func New(resolver domain.Resolver, store domain.HistoryStore, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		resolver: resolver,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		points:   make(map[string]*domain.WatchPoint),
		locks:    make(map[string]*addressLock),
	}
}

// Apply merges one normalized event into the registry.
//
// For a new address it resolves coordinates (hint first, geocoder second),
// appends history if the event is an alert, then creates the watch point.
// For a known address it appends history first and then updates
// status/updatedAt/photo in place; id, address, and coordinates are never
// mutated. The append happens before the map commit so a storage failure
// leaves the registry and the log consistent with each other.
func (r *Registry) Apply(ctx context.Context, event domain.NormalizedEvent) (domain.WatchPoint, error) {
	start := time.Now()
	defer func() {
		r.metrics.ApplyDuration.Observe(time.Since(start).Seconds())
	}()

	lock := r.acquireAddress(event.Address)
	defer r.releaseAddress(event.Address, lock)

	existing, ok := r.get(event.Address)

	var coords domain.Coordinates
	if ok {
		coords = existing.Coordinates
	} else {
		var err error
		coords, err = r.resolveCoordinates(ctx, event)
		if err != nil {
			return domain.WatchPoint{}, err
		}
	}

	if event.IsAlert {
		entry := domain.HistoryEntry{
			Address:   event.Address,
			Photo:     event.Photo,
			Timestamp: event.OccurredAt,
		}
		if err := r.store.Append(ctx, event.Address, entry); err != nil {
			r.metrics.StorageErrors.Inc()
			return domain.WatchPoint{}, &domain.StorageError{Op: "append", Address: event.Address, Err: err}
		}
		r.metrics.HistoryAppends.Inc()
	}

	point := r.commit(event, coords, existing, ok)
	return point, nil
}

// resolveCoordinates picks the event's hint when present, otherwise asks
// the geocoder. Coordinates are resolved at most once per address per
// session; later events reuse the cached value.
func (r *Registry) resolveCoordinates(ctx context.Context, event domain.NormalizedEvent) (domain.Coordinates, error) {
	if event.CoordHint != nil {
		return *event.CoordHint, nil
	}
	if r.resolver == nil {
		r.metrics.ResolutionErrors.Inc()
		return domain.Coordinates{}, &domain.ResolutionError{Address: event.Address}
	}
	coords, err := r.resolver.Resolve(ctx, event.Address)
	if err != nil {
		r.metrics.ResolutionErrors.Inc()
		var rerr *domain.ResolutionError
		if errors.As(err, &rerr) {
			return domain.Coordinates{}, err
		}
		return domain.Coordinates{}, &domain.ResolutionError{Address: event.Address, Err: err}
	}
	return coords, nil
}

// commit performs the in-memory mutation under the map lock.
func (r *Registry) commit(event domain.NormalizedEvent, coords domain.Coordinates, existing domain.WatchPoint, known bool) domain.WatchPoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !known {
		point := &domain.WatchPoint{
			ID:          uuid.NewString(),
			Address:     event.Address,
			Coordinates: coords,
			Status:      event.Status(),
			UpdatedAt:   event.OccurredAt,
		}
		if event.IsAlert {
			point.Photo = event.Photo
		}
		r.points[event.Address] = point
		r.logger.Info("watch point created",
			"address", event.Address,
			"status", point.Status,
			"lat", coords.Latitude,
			"lon", coords.Longitude,
		)
		return *point
	}

	point := r.points[event.Address]
	if event.OccurredAt.Before(point.UpdatedAt) {
		// Stale delivery: history (if any) is already appended, the live
		// state keeps the newer value.
		r.logger.Warn("stale event ignored for live state",
			"address", event.Address,
			"occurred_at", event.OccurredAt,
			"current", point.UpdatedAt,
		)
		return *point
	}

	point.Status = event.Status()
	point.UpdatedAt = event.OccurredAt
	if event.IsAlert {
		point.Photo = event.Photo
	}
	return *point
}

// Get returns the watch point for an address, if present.
func (r *Registry) Get(address string) (domain.WatchPoint, bool) {
	return r.get(address)
}

func (r *Registry) get(address string) (domain.WatchPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	point, ok := r.points[address]
	if !ok {
		return domain.WatchPoint{}, false
	}
	return *point, true
}

// Snapshot returns a copy of every watch point, sorted by address for
// stable output.
func (r *Registry) Snapshot() []domain.WatchPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.WatchPoint, 0, len(r.points))
	for _, p := range r.points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Len reports the number of watch points.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}

// Rebuild reconstructs the registry from durable state after a restart.
// Each address's latest-timestamp entry becomes its current state; since
// only alerts are historized every rebuilt point starts as alerting.
// Addresses that fail to geocode are skipped and will be re-created when
// their next event arrives.
func (r *Registry) Rebuild(ctx context.Context) error {
	addresses, err := r.store.ListAddresses(ctx)
	if err != nil {
		r.metrics.StorageErrors.Inc()
		return &domain.StorageError{Op: "list", Err: err}
	}

	for _, address := range addresses {
		entries, err := r.store.ReadAll(ctx, address)
		if err != nil {
			r.metrics.StorageErrors.Inc()
			r.logger.Warn("rebuild: history unreadable, skipping address", "address", address, "error", err)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		latest := entries[0]
		for _, e := range entries[1:] {
			if e.Timestamp.After(latest.Timestamp) {
				latest = e
			}
		}

		event := domain.NormalizedEvent{
			Address:    address,
			IsAlert:    true,
			Photo:      latest.Photo,
			OccurredAt: latest.Timestamp,
		}
		coords, err := r.resolveCoordinates(ctx, event)
		if err != nil {
			r.logger.Warn("rebuild: geocoding failed, skipping address", "address", address, "error", err)
			continue
		}

		r.mu.Lock()
		r.points[address] = &domain.WatchPoint{
			ID:          uuid.NewString(),
			Address:     address,
			Coordinates: coords,
			Status:      domain.StatusAlert,
			UpdatedAt:   latest.Timestamp,
			Photo:       latest.Photo,
		}
		r.mu.Unlock()
	}

	r.logger.Info("registry rebuilt", "watch_points", r.Len(), "addresses", len(addresses))
	return nil
}

// acquireAddress takes the per-address mutex, creating the entry on first
// use. The refcount is bumped before locking so a concurrent release
// cannot drop the entry out from under a waiter.
func (r *Registry) acquireAddress(address string) *addressLock {
	r.lockMu.Lock()
	lock, ok := r.locks[address]
	if !ok {
		lock = &addressLock{}
		r.locks[address] = lock
	}
	lock.refs++
	r.lockMu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseAddress unlocks the mutex and removes the map entry once no
// goroutine holds or waits on it.
func (r *Registry) releaseAddress(address string, lock *addressLock) {
	lock.mu.Unlock()

	r.lockMu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, address)
	}
	r.lockMu.Unlock()
}

// lockCount reports the number of live per-address lock entries.
func (r *Registry) lockCount() int {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	return len(r.locks)
}
