// Package sqlite provides the SQLite store implementation backed by Grove
// ORM, suitable for single-node and embedded deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("cascade/sqlite: migration failed: %w", err)
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
	if err := s.sdb.NewSelect(&models).OrderExpr("hierarchy_weight ASC").Scan(ctx); err != nil {
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

func (s *Store) SaveTierDefinitions(ctx context.Context, defs []*tier.Definition) error {
	if _, err := tier.NewRegistry(defs); err != nil {
		return err
	}

	if _, err := s.sdb.NewDelete((*tierModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}

	models := make([]tierModel, len(defs))
	for i, d := range defs {
		models[i] = *toTierModel(d)
	}
	_, err := s.sdb.NewInsert(&models).Exec(ctx)
	return err
}

// ==================== Token Record Store ====================

func (s *Store) LoadActiveTokenRecords(ctx context.Context, key scope.Key) ([]*token.Record, error) {
	var models []tokenRecordModel
	err := s.sdb.NewSelect(&models).
		Where("active = ?", true).
		Where("scope_level = ?", string(key.Level)).
		Where("vertical_id = ?", key.VerticalID).
		Where("plan_tier = ?", key.PlanTier).
		Where("tenant_id = ?", key.TenantID).
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
		err := s.sdb.NewSelect(&models).
			Where("active = ?", true).
			Where("scope_level = ?", string(key.Level)).
			Where("vertical_id = ?", key.VerticalID).
			Where("plan_tier = ?", key.PlanTier).
			Where("tenant_id = ?", key.TenantID).
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
	_, err := s.sdb.NewInsert(m).
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
	_, err := s.sdb.NewDelete((*tokenRecordModel)(nil)).
		Where("id = ?", recID.String()).
		Exec(ctx)
	return err
}

// ==================== Feature Limit Store ====================

func (s *Store) LoadFeatureLimitRecord(ctx context.Context, verticalID, tierKey string) (*feature.LimitRecord, error) {
	m := new(featureLimitModel)
	err := s.sdb.NewSelect(m).
		Where("vertical_id = ?", verticalID).
		Where("tier_key = ?", tierKey).
		Where("active = ?", true).
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
		err := s.sdb.NewSelect(m).
			Where("vertical_id = ?", v).
			Where("tier_key = ?", tierKey).
			Where("active = ?", true).
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
	_, err := s.sdb.NewInsert(m).
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
	err := s.sdb.NewSelect(m).
		Where("vertical_id = ?", verticalID).
		Where("tier_key = ?", tierKey).
		Where("feature_key = ?", featureKey).
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
	_, err := s.sdb.NewInsert(m).
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
// count. SQLite serializes writers, so the single upsert statement gives
// each caller a distinct post-increment count.
func (s *Store) IncrementUsage(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error) {
	var count int64
	err := s.sdb.NewRaw(`
		INSERT INTO cascade_usage_counters (tenant_id, feature_key, period_id, count, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT (tenant_id, feature_key, period_id)
		DO UPDATE SET count = count + excluded.count, updated_at = datetime('now')
		RETURNING count
	`, tenantID, featureKey, periodID, delta).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) PeekUsage(ctx context.Context, tenantID, featureKey, periodID string) (int64, error) {
	var count int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(count), 0) FROM cascade_usage_counters
		WHERE tenant_id = ? AND feature_key = ? AND period_id = ?
	`, tenantID, featureKey, periodID).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
