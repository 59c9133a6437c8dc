// Package meter implements atomic per-tenant, per-feature, per-period usage
// counters over a linearizable counter store.
//
// The meter does no clock logic: callers supply the period identifier, which
// keeps metering pure and testable. Counters are monotonic within a period
// and reset only by period rollover (a new period id), never by decrement.
//
// Idempotency under retry is a consumer responsibility: callers that retry
// must deduplicate by request id in front of the meter; the meter itself is
// a plain counter.
package meter

import (
	"context"
	"fmt"
	"time"
)

// Meter records and reads usage counts.
type Meter struct {
	counters CounterStore
}

// New creates a meter over the given counter store.
func New(cs CounterStore) *Meter {
	return &Meter{counters: cs}
}

// Increment atomically increments the counter by one and returns the new
// count. The returned count is load-bearing for entitlement gating: the
// caller that pushes the counter past a cap is the one that sees the
// over-cap value.
func (m *Meter) Increment(ctx context.Context, tenantID, featureKey, periodID string) (int64, error) {
	if err := validateKey(tenantID, featureKey, periodID); err != nil {
		return 0, err
	}
	return m.counters.IncrementUsage(ctx, tenantID, featureKey, periodID, 1)
}

// Add atomically adds delta (> 0) to the counter and returns the new count.
func (m *Meter) Add(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error) {
	if err := validateKey(tenantID, featureKey, periodID); err != nil {
		return 0, err
	}
	if delta <= 0 {
		return 0, fmt.Errorf("meter: delta must be positive, got %d", delta)
	}
	return m.counters.IncrementUsage(ctx, tenantID, featureKey, periodID, delta)
}

// Peek returns the current count without modifying it.
func (m *Meter) Peek(ctx context.Context, tenantID, featureKey, periodID string) (int64, error) {
	if err := validateKey(tenantID, featureKey, periodID); err != nil {
		return 0, err
	}
	return m.counters.PeekUsage(ctx, tenantID, featureKey, periodID)
}

func validateKey(tenantID, featureKey, periodID string) error {
	if tenantID == "" {
		return fmt.Errorf("meter: empty tenant id")
	}
	if featureKey == "" {
		return fmt.Errorf("meter: empty feature key")
	}
	if periodID == "" {
		return fmt.Errorf("meter: empty period id")
	}
	return nil
}

// MonthlyPeriod formats a time as the conventional monthly period id
// (e.g. "2026-02"). It is a convenience for callers; the meter itself never
// derives periods from the clock.
func MonthlyPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}
