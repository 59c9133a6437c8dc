// Package postgres provides the PostgreSQL store implementation backed by
// Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	cascadestore "github.com/xraph/cascade/store"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// compile-time interface check
var _ cascadestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("cascade/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("cascade/postgres: migration failed: %w", err)
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
	if err := s.pg.NewSelect(&models).OrderExpr("hierarchy_weight ASC").Scan(ctx); err != nil {
		return nil, err
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

	if _, err := s.pg.NewDelete((*tierModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}

	models := make([]tierModel, len(defs))
	for i, d := range defs {
		models[i] = *toTierModel(d)
	}
	_, err := s.pg.NewInsert(&models).Exec(ctx)
	return err
}

// ==================== Token Record Store ====================

func (s *Store) LoadActiveTokenRecords(ctx context.Context, key scope.Key) ([]*token.Record, error) {
	var models []tokenRecordModel
	err := s.pg.NewSelect(&models).
		Where("active = $1", true).
		Where("scope_level = $2", string(key.Level)).
		Where("vertical_id = $3", key.VerticalID).
		Where("plan_tier = $4", key.PlanTier).
		Where("tenant_id = $5", key.TenantID).
		Scan(ctx)
	if err != nil {
		return nil, err
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
		err := s.pg.NewSelect(&models).
			Where("active = $1", true).
			Where("scope_level = $2", string(key.Level)).
			Where("vertical_id = $3", key.VerticalID).
			Where("plan_tier = $4", key.PlanTier).
			Where("tenant_id = $5", key.TenantID).
			Scan(ctx)
		if err != nil {
			return nil, err
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("scope_level = EXCLUDED.scope_level").
		Set("vertical_id = EXCLUDED.vertical_id").
		Set("plan_tier = EXCLUDED.plan_tier").
		Set("tenant_id = EXCLUDED.tenant_id").
		Set("payload = EXCLUDED.payload").
		Set("active = EXCLUDED.active").
		Set("weight = EXCLUDED.weight").
		Set("changed_at = EXCLUDED.changed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteTokenRecord(ctx context.Context, recID id.TokenRecordID) error {
	_, err := s.pg.NewDelete((*tokenRecordModel)(nil)).
		Where("id = $1", recID.String()).
		Exec(ctx)
	return err
}

// ==================== Feature Limit Store ====================

func (s *Store) LoadFeatureLimitRecord(ctx context.Context, verticalID, tierKey string) (*feature.LimitRecord, error) {
	m := new(featureLimitModel)
	err := s.pg.NewSelect(m).
		Where("vertical_id = $1", verticalID).
		Where("tier_key = $2", tierKey).
		Where("active = $3", true).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromFeatureLimitModel(m)
}

func (s *Store) LoadFeatureLimitMeta(ctx context.Context, verticalID, tierKey string) ([]types.RecordMeta, error) {
	verticals := []string{verticalID}
	if verticalID != feature.DefaultVertical {
		verticals = append(verticals, feature.DefaultVertical)
	}

	var metas []types.RecordMeta
	for _, v := range verticals {
		m := new(featureLimitModel)
		err := s.pg.NewSelect(m).
			Where("vertical_id = $1", v).
			Where("tier_key = $2", tierKey).
			Where("active = $3", true).
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				continue
			}
			return nil, err
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(vertical_id, tier_key) DO UPDATE").
		Set("features = EXCLUDED.features").
		Set("limits = EXCLUDED.limits").
		Set("active = EXCLUDED.active").
		Set("changed_at = EXCLUDED.changed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Limit Rule Store ====================

func (s *Store) LoadLimitRule(ctx context.Context, verticalID, tierKey, featureKey string) (*feature.LimitRule, error) {
	m := new(limitRuleModel)
	err := s.pg.NewSelect(m).
		Where("vertical_id = $1", verticalID).
		Where("tier_key = $2", tierKey).
		Where("feature_key = $3", featureKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromLimitRuleModel(m)
}

func (s *Store) SaveLimitRule(ctx context.Context, rule *feature.LimitRule) error {
	m := toLimitRuleModel(rule)
	_, err := s.pg.NewInsert(m).
		OnConflict("(vertical_id, tier_key, feature_key) DO UPDATE").
		Set("limit_value = EXCLUDED.limit_value").
		Set("upgrade_message = EXCLUDED.upgrade_message").
		Set("expected_conversion = EXCLUDED.expected_conversion").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Usage Counter Store ====================

// IncrementUsage adds delta to the counter atomically and returns the new
// count. The single upsert statement makes concurrent increments
// linearizable per key: each caller observes a distinct post-increment
// count.
func (s *Store) IncrementUsage(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error) {
	var count int64
	err := s.pg.NewRaw(`
		INSERT INTO cascade_usage_counters (tenant_id, feature_key, period_id, count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id, feature_key, period_id)
		DO UPDATE SET count = cascade_usage_counters.count + EXCLUDED.count, updated_at = NOW()
		RETURNING count
	`, tenantID, featureKey, periodID, delta).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) PeekUsage(ctx context.Context, tenantID, featureKey, periodID string) (int64, error) {
	var count int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(count), 0) FROM cascade_usage_counters
		WHERE tenant_id = $1 AND feature_key = $2 AND period_id = $3
	`, tenantID, featureKey, periodID).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
