package postgres

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

	ID              string            `grove:"id,pk"`
	TierKey         string            `grove:"tier_key"`
	Aliases         []string          `grove:"aliases,type:jsonb"`
	HierarchyWeight int               `grove:"hierarchy_weight"`
	StripePriceIDs  []string          `grove:"stripe_price_ids,type:jsonb"`
	Metadata        map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
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

type tokenRecordModel struct {
	grove.BaseModel `grove:"table:cascade_token_records"`

	ID         string          `grove:"id,pk"`
	ScopeLevel string          `grove:"scope_level"`
	VerticalID string          `grove:"vertical_id"`
	PlanTier   string          `grove:"plan_tier"`
	TenantID   string          `grove:"tenant_id"`
	Payload    json.RawMessage `grove:"payload,type:jsonb"`
	Active     bool            `grove:"active"`
	Weight     int             `grove:"weight"`
	ChangedAt  time.Time       `grove:"changed_at"`
	CreatedAt  time.Time       `grove:"created_at"`
	UpdatedAt  time.Time       `grove:"updated_at"`
}

func toTokenRecordModel(rec *token.Record) *tokenRecordModel {
	return &tokenRecordModel{
		ID:         rec.ID.String(),
		ScopeLevel: string(rec.Scope.Level),
		VerticalID: rec.Scope.VerticalID,
		PlanTier:   rec.Scope.PlanTier,
		TenantID:   rec.Scope.TenantID,
		Payload:    rec.Payload,
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
		Payload:   m.Payload,
		Active:    m.Active,
		Weight:    m.Weight,
		ChangedAt: m.ChangedAt,
	}, nil
}

// ==================== Feature limit models ====================

type featureLimitModel struct {
	grove.BaseModel `grove:"table:cascade_feature_limits"`

	ID         string           `grove:"id,pk"`
	VerticalID string           `grove:"vertical_id"`
	TierKey    string           `grove:"tier_key"`
	Features   []string         `grove:"features,type:jsonb"`
	Limits     map[string]int64 `grove:"limits,type:jsonb"`
	Active     bool             `grove:"active"`
	ChangedAt  time.Time        `grove:"changed_at"`
	CreatedAt  time.Time        `grove:"created_at"`
	UpdatedAt  time.Time        `grove:"updated_at"`
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

	ID                 string    `grove:"id,pk"`
	VerticalID         string    `grove:"vertical_id"`
	TierKey            string    `grove:"tier_key"`
	FeatureKey         string    `grove:"feature_key"`
	LimitValue         int64     `grove:"limit_value"`
	UpgradeMessage     string    `grove:"upgrade_message"`
	ExpectedConversion float64   `grove:"expected_conversion"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
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
