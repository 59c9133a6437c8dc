package token

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/types"
)

// SkipFunc is invoked when the merger skips a record it cannot decode.
type SkipFunc func(ctx context.Context, rec *Record, err error)

// Merger resolves the effective token set for a tenant context by walking
// the scope cascade. Resolution is pure and side-effect free; a Merger is
// safe for concurrent use.
type Merger struct {
	store  Store
	logger *slog.Logger
	onSkip SkipFunc
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithLogger sets the merger's logger.
func WithLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) {
		m.logger = logger
	}
}

// WithSkipFunc installs a callback for skipped malformed records.
func WithSkipFunc(fn SkipFunc) MergerOption {
	return func(m *Merger) {
		m.onSkip = fn
	}
}

// NewMerger creates a cascade merger over the given store.
func NewMerger(st Store, opts ...MergerOption) *Merger {
	m := &Merger{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve computes the effective token set for a context.
//
// Scopes are visited in increasing specificity: platform, then the matching
// vertical, plan, and tenant scopes. At each scope, every key present in the
// record's partial maps overwrites the running result. Overrides are
// key-level, never whole-category: a tenant overriding color.primary leaves
// color.secondary inherited from platform untouched.
//
// Two active records at the identical scope key are a data anomaly; the one
// with the higher weight wins, and on a weight tie the later changed_at
// wins. The tie-break is deterministic: records at one scope are applied in
// ascending (weight, changed_at) order, so the winner overwrites last.
//
// Records whose payload fails schema validation are skipped with a log entry
// and the skip callback; their keys fall back to the next lower-specificity
// scope. Parse failures never end the request for unrelated keys.
func (m *Merger) Resolve(ctx context.Context, sctx scope.Context) (*Set, error) {
	set, _, err := m.ResolveWithMeta(ctx, sctx)
	return set, err
}

// ResolveWithMeta is Resolve plus the (id, changed_at) pairs of every active
// record that contributed to the resolution, for cache fingerprinting.
// Skipped malformed records are included: repairing one must change the
// fingerprint.
func (m *Merger) ResolveWithMeta(ctx context.Context, sctx scope.Context) (*Set, []types.RecordMeta, error) {
	result := make(map[string]string)
	meta := make([]types.RecordMeta, 0, 8)

	for _, key := range sctx.Chain() {
		records, err := m.store.LoadActiveTokenRecords(ctx, key)
		if err != nil {
			return nil, nil, err
		}

		sortRecords(records)

		for _, rec := range records {
			meta = append(meta, rec.Meta())

			values, err := rec.Decode()
			if err != nil {
				m.skip(ctx, rec, err)
				continue
			}

			for cat, entries := range values {
				for tokenKey, value := range entries {
					result[FlatKey(cat, tokenKey)] = value
				}
			}
		}
	}

	return newSet(result), meta, nil
}

func (m *Merger) skip(ctx context.Context, rec *Record, err error) {
	var schemaErr *SchemaError
	reason := err.Error()
	if errors.As(err, &schemaErr) {
		reason = schemaErr.Reason
	}

	m.logger.Warn("skipping malformed token record",
		"record_id", rec.ID.String(),
		"scope", rec.Scope.String(),
		"reason", reason,
	)

	if m.onSkip != nil {
		m.onSkip(ctx, rec, err)
	}
}

// sortRecords orders same-scope records so the tie-break winner applies
// last: ascending weight, then ascending changed_at.
func sortRecords(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Weight != records[j].Weight {
			return records[i].Weight < records[j].Weight
		}
		return records[i].ChangedAt.Before(records[j].ChangedAt)
	})
}
