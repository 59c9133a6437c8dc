// Package mongo provides the MongoDB store implementation backed by
// Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	cascadestore "github.com/xraph/cascade/store"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// Collection name constants.
const (
	colTiers         = "cascade_tier_definitions"
	colTokenRecords  = "cascade_token_records"
	colFeatureLimits = "cascade_feature_limits"
	colLimitRules    = "cascade_limit_rules"
	colUsageCounters = "cascade_usage_counters"
)

// compile-time interface check
var _ cascadestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all cascade collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("cascade/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Tier Store ====================

func (s *Store) LoadTierDefinitions(ctx context.Context) ([]*tier.Definition, error) {
	var models []tierModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "hierarchy_weight", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: load tier definitions: %w", err)
	}

	defs := make([]*tier.Definition, 0, len(models))
	for i := range models {
		d, err := fromTierModel(&models[i])
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// SaveTierDefinitions replaces the tier catalog. The whole set is validated
// before the write so conflicting catalogs never land.
func (s *Store) SaveTierDefinitions(ctx context.Context, defs []*tier.Definition) error {
	if _, err := tier.NewRegistry(defs); err != nil {
		return err
	}

	_, err := s.mdb.NewDelete((*tierModel)(nil)).
		Filter(bson.M{}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/mongo: clear tier definitions: %w", err)
	}

	for _, d := range defs {
		m := toTierModel(d)
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("cascade/mongo: save tier %s: %w", d.TierKey, err)
		}
	}
	return nil
}

// ==================== Token Record Store ====================

func (s *Store) LoadActiveTokenRecords(ctx context.Context, key scope.Key) ([]*token.Record, error) {
	var models []tokenRecordModel
	err := s.mdb.NewFind(&models).
		Filter(scopeFilter(key)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: load token records: %w", err)
	}

	records := make([]*token.Record, 0, len(models))
	for i := range models {
		rec, err := fromTokenRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) LoadTokenRecordMeta(ctx context.Context, keys []scope.Key) ([]types.RecordMeta, error) {
	var metas []types.RecordMeta
	for _, key := range keys {
		var models []tokenRecordModel
		err := s.mdb.NewFind(&models).
			Filter(scopeFilter(key)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("cascade/mongo: load token record meta: %w", err)
		}
		for i := range models {
			recID, err := id.ParseTokenRecordID(models[i].ID)
			if err != nil {
				return nil, err
			}
			metas = append(metas, types.RecordMeta{ID: recID, ChangedAt: models[i].ChangedAt})
		}
	}
	return metas, nil
}

func (s *Store) SaveTokenRecord(ctx context.Context, rec *token.Record) error {
	m := toTokenRecordModel(rec)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":         m.ID,
			"scope_level": m.ScopeLevel,
			"vertical_id": m.VerticalID,
			"plan_tier":   m.PlanTier,
			"tenant_id":   m.TenantID,
			"payload":     m.Payload,
			"active":      m.Active,
			"weight":      m.Weight,
			"changed_at":  m.ChangedAt,
			"created_at":  m.CreatedAt,
			"updated_at":  m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/mongo: save token record: %w", err)
	}
	return nil
}

func (s *Store) DeleteTokenRecord(ctx context.Context, recID id.TokenRecordID) error {
	_, err := s.mdb.NewDelete((*tokenRecordModel)(nil)).
		Filter(bson.M{"_id": recID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/mongo: delete token record: %w", err)
	}
	return nil
}

// ==================== Feature Limit Store ====================

func (s *Store) LoadFeatureLimitRecord(ctx context.Context, verticalID, tierKey string) (*feature.LimitRecord, error) {
	var m featureLimitModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"vertical_id": verticalID, "tier_key": tierKey, "active": true}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cascade/mongo: load feature limits: %w", err)
	}
	return fromFeatureLimitModel(&m)
}

func (s *Store) LoadFeatureLimitMeta(ctx context.Context, verticalID, tierKey string) ([]types.RecordMeta, error) {
	verticals := []string{verticalID}
	if verticalID != feature.DefaultVertical {
		verticals = append(verticals, feature.DefaultVertical)
	}

	var metas []types.RecordMeta
	for _, v := range verticals {
		var m featureLimitModel
		err := s.mdb.NewFind(&m).
			Filter(bson.M{"vertical_id": v, "tier_key": tierKey, "active": true}).
			Scan(ctx)
		if err != nil {
			if isNoDocuments(err) {
				continue
			}
			return nil, fmt.Errorf("cascade/mongo: load feature limit meta: %w", err)
		}
		recID, err := id.ParseFeatureLimitID(m.ID)
		if err != nil {
			return nil, err
		}
		metas = append(metas, types.RecordMeta{ID: recID, ChangedAt: m.ChangedAt})
	}
	return metas, nil
}

func (s *Store) SaveFeatureLimitRecord(ctx context.Context, rec *feature.LimitRecord) error {
	m := toFeatureLimitModel(rec)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"vertical_id": m.VerticalID, "tier_key": m.TierKey}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":         m.ID,
			"vertical_id": m.VerticalID,
			"tier_key":    m.TierKey,
			"features":    m.Features,
			"limits":      m.Limits,
			"active":      m.Active,
			"changed_at":  m.ChangedAt,
			"created_at":  m.CreatedAt,
			"updated_at":  m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/mongo: save feature limits: %w", err)
	}
	return nil
}

// ==================== Limit Rule Store ====================

func (s *Store) LoadLimitRule(ctx context.Context, verticalID, tierKey, featureKey string) (*feature.LimitRule, error) {
	var m limitRuleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"vertical_id": verticalID, "tier_key": tierKey, "feature_key": featureKey}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cascade/mongo: load limit rule: %w", err)
	}
	return fromLimitRuleModel(&m)
}

func (s *Store) SaveLimitRule(ctx context.Context, rule *feature.LimitRule) error {
	m := toLimitRuleModel(rule)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"vertical_id": m.VerticalID, "tier_key": m.TierKey, "feature_key": m.FeatureKey}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":                 m.ID,
			"vertical_id":         m.VerticalID,
			"tier_key":            m.TierKey,
			"feature_key":         m.FeatureKey,
			"limit_value":         m.LimitValue,
			"upgrade_message":     m.UpgradeMessage,
			"expected_conversion": m.ExpectedConversion,
			"created_at":          m.CreatedAt,
			"updated_at":          m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/mongo: save limit rule: %w", err)
	}
	return nil
}

// ==================== Usage Counter Store ====================

// IncrementUsage adds delta to the counter atomically and returns the new
// count. The single findAndModify round-trip makes concurrent increments
// linearizable per key: each caller observes a distinct post-increment
// count. Grove has no findAndModify builder, so this drops to the raw
// driver collection.
func (s *Store) IncrementUsage(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error) {
	key := counterKey(tenantID, featureKey, periodID)
	res := s.mdb.Collection(colUsageCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{
			"$inc": bson.M{"count": delta},
			"$set": bson.M{
				"tenant_id":   tenantID,
				"feature_key": featureKey,
				"period_id":   periodID,
				"updated_at":  now(),
			},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	)

	var m usageCounterModel
	if err := res.Decode(&m); err != nil {
		return 0, fmt.Errorf("cascade/mongo: increment usage: %w", err)
	}
	return m.Count, nil
}

func (s *Store) PeekUsage(ctx context.Context, tenantID, featureKey, periodID string) (int64, error) {
	key := counterKey(tenantID, featureKey, periodID)

	var m usageCounterModel
	err := s.mdb.Collection(colUsageCounters).
		FindOne(ctx, bson.M{"_id": key}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("cascade/mongo: peek usage: %w", err)
	}
	return m.Count, nil
}

// ==================== Helpers ====================

func scopeFilter(key scope.Key) bson.M {
	return bson.M{
		"active":      true,
		"scope_level": string(key.Level),
		"vertical_id": key.VerticalID,
		"plan_tier":   key.PlanTier,
		"tenant_id":   key.TenantID,
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func now() time.Time {
	return time.Now().UTC()
}

// migrationIndexes returns the index definitions for all cascade collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTiers: {
			{
				Keys:    bson.D{{Key: "tier_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTokenRecords: {
			{Keys: bson.D{
				{Key: "scope_level", Value: 1},
				{Key: "vertical_id", Value: 1},
				{Key: "plan_tier", Value: 1},
				{Key: "tenant_id", Value: 1},
				{Key: "active", Value: 1},
			}},
			{Keys: bson.D{{Key: "changed_at", Value: -1}}},
		},
		colFeatureLimits: {
			{
				Keys:    bson.D{{Key: "vertical_id", Value: 1}, {Key: "tier_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colLimitRules: {
			{
				Keys: bson.D{
					{Key: "vertical_id", Value: 1},
					{Key: "tier_key", Value: 1},
					{Key: "feature_key", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		colUsageCounters: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "period_id", Value: 1}}},
		},
	}
}
