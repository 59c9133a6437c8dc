package meter

import "context"

// CounterStore is the atomic counter backend. Implementations must make
// IncrementUsage a single linearizable read-modify-write per
// (tenant, feature, period) key — never a read followed by a write from the
// caller's perspective — so concurrent increments never lose an update.
type CounterStore interface {
	// IncrementUsage atomically adds delta to the counter and returns the
	// resulting count.
	IncrementUsage(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error)

	// PeekUsage returns the current count without modifying it. Missing
	// counters read as zero.
	PeekUsage(ctx context.Context, tenantID, featureKey, periodID string) (int64, error)
}
