// Package memory provides an in-memory store implementation, suitable for
// tests, examples, and single-process setups.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// Store is an in-memory implementation of store.Store. All state lives
// behind one mutex, which also makes counter increments linearizable.
type Store struct {
	mu       sync.Mutex
	tiers    []*tier.Definition
	tokens   map[string]*token.Record        // keyed by record ID
	features map[string]*feature.LimitRecord // keyed by vertical/tier
	rules    map[string]*feature.LimitRule   // keyed by vertical/tier/feature
	counters map[string]int64                // keyed by tenant/feature/period
	closed   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tokens:   make(map[string]*token.Record),
		features: make(map[string]*feature.LimitRecord),
		rules:    make(map[string]*feature.LimitRule),
		counters: make(map[string]int64),
	}
}

func pairKey(verticalID, tierKey string) string {
	return verticalID + "\x00" + tierKey
}

func ruleKey(verticalID, tierKey, featureKey string) string {
	return verticalID + "\x00" + tierKey + "\x00" + featureKey
}

func counterKey(tenantID, featureKey, periodID string) string {
	return tenantID + "\x00" + featureKey + "\x00" + periodID
}

// LoadTierDefinitions returns all stored tier definitions.
func (s *Store) LoadTierDefinitions(_ context.Context) ([]*tier.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs := make([]*tier.Definition, len(s.tiers))
	for i, d := range s.tiers {
		defs[i] = cloneTier(d)
	}
	return defs, nil
}

// SaveTierDefinitions replaces the tier catalog. The new set is validated
// as a whole before it is accepted, so alias and weight conflicts are
// rejected at save time rather than discovered at resolution time.
func (s *Store) SaveTierDefinitions(_ context.Context, defs []*tier.Definition) error {
	if _, err := tier.NewRegistry(defs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tiers = make([]*tier.Definition, len(defs))
	for i, d := range defs {
		s.tiers[i] = cloneTier(d)
	}
	return nil
}

// LoadActiveTokenRecords returns the active records for one scope key.
func (s *Store) LoadActiveTokenRecords(_ context.Context, key scope.Key) ([]*token.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*token.Record
	for _, rec := range s.tokens {
		if rec.Active && rec.Scope == key {
			records = append(records, cloneToken(rec))
		}
	}
	return records, nil
}

// LoadTokenRecordMeta returns the (id, changed_at) pairs of the active
// records across the given scope keys.
func (s *Store) LoadTokenRecordMeta(_ context.Context, keys []scope.Key) ([]types.RecordMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metas []types.RecordMeta
	for _, key := range keys {
		for _, rec := range s.tokens {
			if rec.Active && rec.Scope == key {
				metas = append(metas, rec.Meta())
			}
		}
	}
	return metas, nil
}

// SaveTokenRecord inserts or replaces a token record.
func (s *Store) SaveTokenRecord(_ context.Context, rec *token.Record) error {
	if err := rec.Scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[rec.ID.String()] = cloneToken(rec)
	return nil
}

// DeleteTokenRecord removes a token record.
func (s *Store) DeleteTokenRecord(_ context.Context, recID id.TokenRecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, recID.String())
	return nil
}

// LoadFeatureLimitRecord returns the active record for an exact
// (vertical, tier) pair, or nil when none exists.
func (s *Store) LoadFeatureLimitRecord(_ context.Context, verticalID, tierKey string) (*feature.LimitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.features[pairKey(verticalID, tierKey)]
	if !ok || !rec.Active {
		return nil, nil
	}
	return cloneLimitRecord(rec), nil
}

// LoadFeatureLimitMeta returns the metadata of the active records for the
// exact pair and its DefaultVertical fallback.
func (s *Store) LoadFeatureLimitMeta(_ context.Context, verticalID, tierKey string) ([]types.RecordMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metas []types.RecordMeta
	if rec, ok := s.features[pairKey(verticalID, tierKey)]; ok && rec.Active {
		metas = append(metas, rec.Meta())
	}
	if verticalID != feature.DefaultVertical {
		if rec, ok := s.features[pairKey(feature.DefaultVertical, tierKey)]; ok && rec.Active {
			metas = append(metas, rec.Meta())
		}
	}
	return metas, nil
}

// SaveFeatureLimitRecord inserts or replaces the record for its
// (vertical, tier) pair.
func (s *Store) SaveFeatureLimitRecord(_ context.Context, rec *feature.LimitRecord) error {
	if rec.VerticalID == "" || rec.TierKey == "" {
		return fmt.Errorf("memory: feature limit record requires vertical_id and tier_key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.features[pairKey(rec.VerticalID, rec.TierKey)] = cloneLimitRecord(rec)
	return nil
}

// LoadLimitRule returns the rule for an exact (vertical, tier, feature)
// triple, or nil when none exists.
func (s *Store) LoadLimitRule(_ context.Context, verticalID, tierKey, featureKey string) (*feature.LimitRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[ruleKey(verticalID, tierKey, featureKey)]
	if !ok {
		return nil, nil
	}
	clone := *rule
	return &clone, nil
}

// SaveLimitRule inserts or replaces the rule for its triple.
func (s *Store) SaveLimitRule(_ context.Context, rule *feature.LimitRule) error {
	if rule.TierKey == "" || rule.FeatureKey == "" {
		return fmt.Errorf("memory: limit rule requires tier_key and feature_key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *rule
	s.rules[ruleKey(rule.VerticalID, rule.TierKey, rule.FeatureKey)] = &clone
	return nil
}

// IncrementUsage atomically adds delta to the counter and returns the new
// count. The single store mutex makes concurrent increments linearizable.
func (s *Store) IncrementUsage(_ context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey(tenantID, featureKey, periodID)
	s.counters[key] += delta
	return s.counters[key], nil
}

// PeekUsage returns the current count without modifying it. Absent
// counters read as zero.
func (s *Store) PeekUsage(_ context.Context, tenantID, featureKey, periodID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[counterKey(tenantID, featureKey, periodID)], nil
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping reports whether the store is usable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory: store closed")
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func cloneTier(d *tier.Definition) *tier.Definition {
	clone := *d
	clone.Aliases = append([]string(nil), d.Aliases...)
	clone.StripePriceIDs = append([]string(nil), d.StripePriceIDs...)
	if d.Metadata != nil {
		clone.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

func cloneToken(rec *token.Record) *token.Record {
	clone := *rec
	clone.Payload = append([]byte(nil), rec.Payload...)
	return &clone
}

func cloneLimitRecord(rec *feature.LimitRecord) *feature.LimitRecord {
	clone := *rec
	clone.Features = append([]string(nil), rec.Features...)
	if rec.Limits != nil {
		clone.Limits = make(map[string]int64, len(rec.Limits))
		for k, v := range rec.Limits {
			clone.Limits[k] = v
		}
	}
	return &clone
}
