package domain

import "context"

// Resolver translates a free-text address into coordinates. Implementations
// wrap an external geocoding capability and must be idempotent: resolving
// the same text twice yields the same coordinates barring upstream data
// drift. A lookup that fails, times out, or matches nothing returns a
// *ResolutionError.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Coordinates, error)
}
