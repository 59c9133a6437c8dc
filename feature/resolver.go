package feature

import (
	"context"
	"log/slog"

	"github.com/xraph/cascade/types"
)

// Resolver resolves the effective feature set and limits for a
// (vertical, tier) pair. Resolution is pure and side-effect free; a Resolver
// is safe for concurrent use.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver over the given store.
func NewResolver(st Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the entitlements for a (vertical, tier) pair.
//
// Lookup order: the exact (vertical, tier) record if active, else the
// (DefaultVertical, tier) record. First match wins with no merging between
// the two — feature sets are coarse catalog entries per plan, unlike the
// key-level token cascade. A pair with no record at all resolves to empty
// entitlements: every feature disabled.
func (r *Resolver) Resolve(ctx context.Context, verticalID, tierKey string) (*Entitlements, error) {
	ents, _, err := r.ResolveWithMeta(ctx, verticalID, tierKey)
	return ents, err
}

// ResolveWithMeta is Resolve plus the (id, changed_at) pairs of the records
// consulted, for cache fingerprinting. The metadata covers both the exact
// pair and the fallback so that creating a previously missing exact record
// invalidates cached fallback resolutions.
func (r *Resolver) ResolveWithMeta(ctx context.Context, verticalID, tierKey string) (*Entitlements, []types.RecordMeta, error) {
	meta, err := r.store.LoadFeatureLimitMeta(ctx, verticalID, tierKey)
	if err != nil {
		return nil, nil, err
	}

	rec, err := r.store.LoadFeatureLimitRecord(ctx, verticalID, tierKey)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil && verticalID != DefaultVertical {
		rec, err = r.store.LoadFeatureLimitRecord(ctx, DefaultVertical, tierKey)
		if err != nil {
			return nil, nil, err
		}
	}

	if rec == nil {
		r.logger.Debug("no feature record for pair; resolving empty entitlements",
			"vertical_id", verticalID,
			"tier_key", tierKey,
		)
		return &Entitlements{
			VerticalID: verticalID,
			TierKey:    tierKey,
			Features:   []string{},
			Limits:     map[string]int64{},
		}, meta, nil
	}

	features := make([]string, len(rec.Features))
	copy(features, rec.Features)

	limits := make(map[string]int64, len(rec.Limits))
	for k, v := range rec.Limits {
		limits[k] = v
	}

	return &Entitlements{
		VerticalID: verticalID,
		TierKey:    tierKey,
		Features:   features,
		Limits:     limits,
	}, meta, nil
}

// Rule returns the limit rule for a (vertical, tier, feature) triple,
// falling back to the DefaultVertical rule. Returns nil when no rule exists.
func (r *Resolver) Rule(ctx context.Context, verticalID, tierKey, featureKey string) (*LimitRule, error) {
	rule, err := r.store.LoadLimitRule(ctx, verticalID, tierKey, featureKey)
	if err != nil {
		return nil, err
	}
	if rule == nil && verticalID != DefaultVertical {
		rule, err = r.store.LoadLimitRule(ctx, DefaultVertical, tierKey, featureKey)
		if err != nil {
			return nil, err
		}
	}
	return rule, nil
}
