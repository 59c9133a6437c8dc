// Package feature implements per-vertical, per-tier feature catalogs with
// numeric usage limits and the resolver that applies the default-vertical
// fallback.
package feature

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/types"
)

// DefaultVertical is the catch-all vertical key for feature/limit records
// that apply to any vertical without an exact record.
const DefaultVertical = "_default"

// Limit sentinels. These semantics are fixed and never reinterpreted by any
// consumer: a feature key absent from a resolved limits map means Disabled,
// never Unlimited.
const (
	Unlimited int64 = -1
	Disabled  int64 = 0
)

// LimitRecord is the feature catalog for one (vertical, tier) pair.
// Feature sets are coarse catalog entries per plan: lookup is first match
// (exact vertical, else DefaultVertical) with no merging between the two.
type LimitRecord struct {
	types.Entity
	ID id.FeatureLimitID `json:"id"`

	// VerticalID is the vertical this record applies to, or DefaultVertical.
	VerticalID string `json:"vertical_id"`

	// TierKey is the canonical tier key.
	TierKey string `json:"tier_key"`

	// Features is the set of feature keys enabled for the plan.
	Features []string `json:"features"`

	// Limits maps feature keys to per-period caps using the sentinel
	// semantics above.
	Limits map[string]int64 `json:"limits"`

	Active bool `json:"active"`

	ChangedAt time.Time `json:"changed_at"`
}

// Meta returns the record's fingerprint contribution.
func (r *LimitRecord) Meta() types.RecordMeta {
	return types.RecordMeta{ID: r.ID, ChangedAt: r.ChangedAt}
}

// LimitRule carries the upgrade-signaling configuration for one
// (vertical, tier, feature) triple.
type LimitRule struct {
	types.Entity
	ID id.LimitRuleID `json:"id"`

	VerticalID string `json:"vertical_id"`
	TierKey    string `json:"tier_key"`
	FeatureKey string `json:"feature_key"`

	LimitValue int64 `json:"limit_value"`

	// UpgradeMessage is a template with {vertical}, {tier}, {feature} and
	// {limit} placeholders.
	UpgradeMessage string `json:"upgrade_message"`

	// ExpectedConversion is advisory metadata (0.0–1.0) for downstream
	// marketing systems; the engine passes it through untouched.
	ExpectedConversion float64 `json:"expected_conversion"`
}

// RenderMessage substitutes the rule's placeholders.
func (r *LimitRule) RenderMessage(verticalID, tierKey string, limit int64) string {
	return strings.NewReplacer(
		"{vertical}", verticalID,
		"{tier}", tierKey,
		"{feature}", r.FeatureKey,
		"{limit}", strconv.FormatInt(limit, 10),
	).Replace(r.UpgradeMessage)
}

// Entitlements is the resolved feature set and limits for a (vertical, tier)
// context. It is an immutable value object, safe to share without locking.
type Entitlements struct {
	VerticalID string           `json:"vertical_id"`
	TierKey    string           `json:"tier_key"`
	Features   []string         `json:"features"`
	Limits     map[string]int64 `json:"limits"`
}

// HasFeature reports whether the feature key is in the resolved set.
func (e *Entitlements) HasFeature(key string) bool {
	for _, f := range e.Features {
		if f == key {
			return true
		}
	}
	return false
}

// LimitFor returns the limit for a feature key. Absence means Disabled —
// never a permissive default.
func (e *Entitlements) LimitFor(key string) int64 {
	if v, ok := e.Limits[key]; ok {
		return v
	}
	return Disabled
}

// FeatureKeys returns the resolved feature keys in sorted order.
func (e *Entitlements) FeatureKeys() []string {
	keys := make([]string, len(e.Features))
	copy(keys, e.Features)
	sort.Strings(keys)
	return keys
}

// Store loads feature/limit records and rules from the backing repository.
type Store interface {
	// LoadFeatureLimitRecord returns the active record for an exact
	// (vertical, tier) pair, or nil when none exists. verticalID may be
	// DefaultVertical.
	LoadFeatureLimitRecord(ctx context.Context, verticalID, tierKey string) (*LimitRecord, error)

	// LoadFeatureLimitMeta returns the (id, changed_at) pairs of the active
	// records for the exact pair and its DefaultVertical fallback. It is the
	// metadata-only call used for cheap cache revalidation.
	LoadFeatureLimitMeta(ctx context.Context, verticalID, tierKey string) ([]types.RecordMeta, error)

	// LoadLimitRule returns the rule for a (vertical, tier, feature) triple,
	// or nil when none exists.
	LoadLimitRule(ctx context.Context, verticalID, tierKey, featureKey string) (*LimitRule, error)
}
