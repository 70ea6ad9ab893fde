package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sperola37/smoke-watching/internal/adapter/sqlite"
	"github.com/sperola37/smoke-watching/internal/domain"
)

const testAddress = "한성대학교"

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendReadAllRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2025, 4, 26, 10, 30, 0, 0, time.UTC)
	entry := domain.HistoryEntry{Address: testAddress, Photo: "https://cdn/p1.png", Timestamp: ts}

	require.NoError(t, store.Append(ctx, testAddress, entry))

	entries, err := store.ReadAll(ctx, testAddress)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])
}

func TestReadAll_InsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 4, 26, 10, 0, 0, 0, time.UTC)
	// Appended newest-timestamp-first: storage order must follow insertion,
	// not timestamp.
	for i := 2; i >= 0; i-- {
		require.NoError(t, store.Append(ctx, testAddress, domain.HistoryEntry{
			Address:   testAddress,
			Photo:     "p",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	entries, err := store.ReadAll(ctx, testAddress)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, base.Add(2*time.Hour), entries[0].Timestamp)
	assert.Equal(t, base, entries[2].Timestamp)
}

func TestReadAll_UnknownAddressIsEmpty(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.ReadAll(context.Background(), "never seen")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListAddresses(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2025, 4, 26, 10, 0, 0, 0, time.UTC)
	for _, address := range []string{"b", "a", "b"} {
		require.NoError(t, store.Append(ctx, address, domain.HistoryEntry{Address: address, Timestamp: ts}))
	}

	addresses, err := store.ListAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, addresses)
}

func TestListAddresses_EmptyStore(t *testing.T) {
	store := openTestStore(t)

	addresses, err := store.ListAddresses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, addresses)
}

func TestAppend_EmptyAddressRejected(t *testing.T) {
	store := openTestStore(t)

	err := store.Append(context.Background(), "", domain.HistoryEntry{Timestamp: time.Now()})
	require.Error(t, err)
}

func TestAppend_DuplicateEntriesKept(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := domain.HistoryEntry{
		Address:   testAddress,
		Photo:     "p",
		Timestamp: time.Date(2025, 4, 26, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Append(ctx, testAddress, entry))
	require.NoError(t, store.Append(ctx, testAddress, entry))

	entries, err := store.ReadAll(ctx, testAddress)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "append never merges or overwrites")
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	entry := domain.HistoryEntry{
		Address:   testAddress,
		Photo:     "p",
		Timestamp: time.Date(2025, 4, 26, 10, 0, 0, 0, time.UTC),
	}

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, testAddress, entry))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.ReadAll(ctx, testAddress)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])

	addresses, err := reopened.ListAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testAddress}, addresses)
}

func TestOpen_DefaultsPathWhenEmpty(t *testing.T) {
	store, err := sqlite.Open("")
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
