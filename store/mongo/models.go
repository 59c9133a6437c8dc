package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// ==================== Tier models ====================

type tierModel struct {
	grove.BaseModel `grove:"table:cascade_tier_definitions"`

	ID              string            `grove:"id,pk"            bson:"_id"`
	TierKey         string            `grove:"tier_key"         bson:"tier_key"`
	Aliases         []string          `grove:"aliases"          bson:"aliases"`
	HierarchyWeight int               `grove:"hierarchy_weight" bson:"hierarchy_weight"`
	StripePriceIDs  []string          `grove:"stripe_price_ids" bson:"stripe_price_ids,omitempty"`
	Metadata        map[string]string `grove:"metadata"         bson:"metadata,omitempty"`
	CreatedAt       time.Time         `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"       bson:"updated_at"`
}

func toTierModel(d *tier.Definition) *tierModel {
	return &tierModel{
		ID:              d.ID.String(),
		TierKey:         d.TierKey,
		Aliases:         d.Aliases,
		HierarchyWeight: d.HierarchyWeight,
		StripePriceIDs:  d.StripePriceIDs,
		Metadata:        d.Metadata,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func fromTierModel(m *tierModel) (*tier.Definition, error) {
	tierID, err := id.ParseTierDefinitionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &tier.Definition{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              tierID,
		TierKey:         m.TierKey,
		Aliases:         m.Aliases,
		HierarchyWeight: m.HierarchyWeight,
		StripePriceIDs:  m.StripePriceIDs,
		Metadata:        m.Metadata,
	}, nil
}

// ==================== Token record models ====================

// Payload is kept as the raw JSON string so round-trips preserve the exact
// document the author saved, key order included.
type tokenRecordModel struct {
	grove.BaseModel `grove:"table:cascade_token_records"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	ScopeLevel string    `grove:"scope_level" bson:"scope_level"`
	VerticalID string    `grove:"vertical_id" bson:"vertical_id"`
	PlanTier   string    `grove:"plan_tier"   bson:"plan_tier"`
	TenantID   string    `grove:"tenant_id"   bson:"tenant_id"`
	Payload    string    `grove:"payload"     bson:"payload"`
	Active     bool      `grove:"active"      bson:"active"`
	Weight     int       `grove:"weight"      bson:"weight"`
	ChangedAt  time.Time `grove:"changed_at"  bson:"changed_at"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toTokenRecordModel(rec *token.Record) *tokenRecordModel {
	return &tokenRecordModel{
		ID:         rec.ID.String(),
		ScopeLevel: string(rec.Scope.Level),
		VerticalID: rec.Scope.VerticalID,
		PlanTier:   rec.Scope.PlanTier,
		TenantID:   rec.Scope.TenantID,
		Payload:    string(rec.Payload),
		Active:     rec.Active,
		Weight:     rec.Weight,
		ChangedAt:  rec.ChangedAt,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func fromTokenRecordModel(m *tokenRecordModel) (*token.Record, error) {
	recID, err := id.ParseTokenRecordID(m.ID)
	if err != nil {
		return nil, err
	}

	return &token.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID: recID,
		Scope: scope.Key{
			Level:      scope.Level(m.ScopeLevel),
			VerticalID: m.VerticalID,
			PlanTier:   m.PlanTier,
			TenantID:   m.TenantID,
		},
		Payload:   json.RawMessage(m.Payload),
		Active:    m.Active,
		Weight:    m.Weight,
		ChangedAt: m.ChangedAt,
	}, nil
}

// ==================== Feature limit models ====================

type featureLimitModel struct {
	grove.BaseModel `grove:"table:cascade_feature_limits"`

	ID         string           `grove:"id,pk"       bson:"_id"`
	VerticalID string           `grove:"vertical_id" bson:"vertical_id"`
	TierKey    string           `grove:"tier_key"    bson:"tier_key"`
	Features   []string         `grove:"features"    bson:"features"`
	Limits     map[string]int64 `grove:"limits"      bson:"limits"`
	Active     bool             `grove:"active"      bson:"active"`
	ChangedAt  time.Time        `grove:"changed_at"  bson:"changed_at"`
	CreatedAt  time.Time        `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time        `grove:"updated_at"  bson:"updated_at"`
}

func toFeatureLimitModel(rec *feature.LimitRecord) *featureLimitModel {
	return &featureLimitModel{
		ID:         rec.ID.String(),
		VerticalID: rec.VerticalID,
		TierKey:    rec.TierKey,
		Features:   rec.Features,
		Limits:     rec.Limits,
		Active:     rec.Active,
		ChangedAt:  rec.ChangedAt,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func fromFeatureLimitModel(m *featureLimitModel) (*feature.LimitRecord, error) {
	recID, err := id.ParseFeatureLimitID(m.ID)
	if err != nil {
		return nil, err
	}

	return &feature.LimitRecord{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         recID,
		VerticalID: m.VerticalID,
		TierKey:    m.TierKey,
		Features:   m.Features,
		Limits:     m.Limits,
		Active:     m.Active,
		ChangedAt:  m.ChangedAt,
	}, nil
}

// ==================== Limit rule models ====================

type limitRuleModel struct {
	grove.BaseModel `grove:"table:cascade_limit_rules"`

	ID                 string    `grove:"id,pk"               bson:"_id"`
	VerticalID         string    `grove:"vertical_id"         bson:"vertical_id"`
	TierKey            string    `grove:"tier_key"            bson:"tier_key"`
	FeatureKey         string    `grove:"feature_key"         bson:"feature_key"`
	LimitValue         int64     `grove:"limit_value"         bson:"limit_value"`
	UpgradeMessage     string    `grove:"upgrade_message"     bson:"upgrade_message"`
	ExpectedConversion float64   `grove:"expected_conversion" bson:"expected_conversion"`
	CreatedAt          time.Time `grove:"created_at"          bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"          bson:"updated_at"`
}

func toLimitRuleModel(rule *feature.LimitRule) *limitRuleModel {
	return &limitRuleModel{
		ID:                 rule.ID.String(),
		VerticalID:         rule.VerticalID,
		TierKey:            rule.TierKey,
		FeatureKey:         rule.FeatureKey,
		LimitValue:         rule.LimitValue,
		UpgradeMessage:     rule.UpgradeMessage,
		ExpectedConversion: rule.ExpectedConversion,
		CreatedAt:          rule.CreatedAt,
		UpdatedAt:          rule.UpdatedAt,
	}
}

func fromLimitRuleModel(m *limitRuleModel) (*feature.LimitRule, error) {
	ruleID, err := id.ParseLimitRuleID(m.ID)
	if err != nil {
		return nil, err
	}

	return &feature.LimitRule{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 ruleID,
		VerticalID:         m.VerticalID,
		TierKey:            m.TierKey,
		FeatureKey:         m.FeatureKey,
		LimitValue:         m.LimitValue,
		UpgradeMessage:     m.UpgradeMessage,
		ExpectedConversion: m.ExpectedConversion,
	}, nil
}

// ==================== Usage counter models ====================

type usageCounterModel struct {
	CounterKey string    `bson:"_id"`
	TenantID   string    `bson:"tenant_id"`
	FeatureKey string    `bson:"feature_key"`
	PeriodID   string    `bson:"period_id"`
	Count      int64     `bson:"count"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func counterKey(tenantID, featureKey, periodID string) string {
	return tenantID + "/" + featureKey + "/" + periodID
}
