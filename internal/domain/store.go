package domain

import "context"

// HistoryStore is the durable, address-keyed append-only log of alert
// entries. It is the single source of truth: the registry is a rebuildable
// cache over it, and the aggregation engine reads it directly so statistics
// survive process restarts.
//
// Append must be durable before returning. Entries are never rewritten or
// deleted. Appends for different addresses are independent and must not
// block each other.
type HistoryStore interface {
	// Append adds one entry to the address's log.
	Append(ctx context.Context, address string, entry HistoryEntry) error

	// ReadAll returns every entry ever appended for the address, in
	// insertion order. Callers sort by Timestamp when order matters.
	ReadAll(ctx context.Context, address string) ([]HistoryEntry, error)

	// ListAddresses enumerates every address with at least one entry.
	ListAddresses(ctx context.Context) ([]string, error)
}
