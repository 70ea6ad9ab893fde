package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sperola37/smoke-watching/internal/domain"
)

type countingResolver struct {
	coords domain.Coordinates
	err    error
	calls  int
}

func (r *countingResolver) Resolve(_ context.Context, _ string) (domain.Coordinates, error) {
	r.calls++
	return r.coords, r.err
}

func TestCachedResolver_HitAvoidsSecondLookup(t *testing.T) {
	inner := &countingResolver{coords: domain.Coordinates{Latitude: 37.58, Longitude: 127.01}}
	cached := NewCachedResolver(inner, 10, testMetrics())

	first, err := cached.Resolve(context.Background(), "Library")
	require.NoError(t, err)
	second, err := cached.Resolve(context.Background(), "Library")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedResolver_FailuresNotCached(t *testing.T) {
	inner := &countingResolver{err: errors.New("unreachable")}
	cached := NewCachedResolver(inner, 10, testMetrics())

	_, err := cached.Resolve(context.Background(), "Library")
	require.Error(t, err)
	_, err = cached.Resolve(context.Background(), "Library")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls, "errors must be retried, not served from cache")
}

func TestCachedResolver_DistinctAddressesCachedSeparately(t *testing.T) {
	inner := &countingResolver{coords: domain.Coordinates{Latitude: 1}}
	cached := NewCachedResolver(inner, 10, testMetrics())

	_, err := cached.Resolve(context.Background(), "a")
	require.NoError(t, err)
	_, err = cached.Resolve(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Coordinates{Latitude: 1})
	c.put("b", domain.Coordinates{Latitude: 2})

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", domain.Coordinates{Latitude: 3})

	_, ok = c.get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_UpdateExistingKey(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Coordinates{Latitude: 1})
	c.put("a", domain.Coordinates{Latitude: 9})

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 9.0, v.Latitude)
}
