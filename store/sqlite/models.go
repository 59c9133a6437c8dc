package sqlite

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

// SQLite stores JSON columns as TEXT, so slice and map fields are
// marshalled explicitly instead of relying on driver-side JSONB handling.

// ==================== Tier models ====================

type tierModel struct {
	grove.BaseModel `grove:"table:cascade_tier_definitions"`

	ID              string    `grove:"id,pk"`
	TierKey         string    `grove:"tier_key"`
	Aliases         string    `grove:"aliases"`
	HierarchyWeight int       `grove:"hierarchy_weight"`
	StripePriceIDs  string    `grove:"stripe_price_ids"`
	Metadata        string    `grove:"metadata"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toTierModel(d *tier.Definition) *tierModel {
	return &tierModel{
		ID:              d.ID.String(),
		TierKey:         d.TierKey,
		Aliases:         marshalJSON(d.Aliases),
		HierarchyWeight: d.HierarchyWeight,
		StripePriceIDs:  marshalJSON(d.StripePriceIDs),
		Metadata:        marshalJSON(d.Metadata),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func fromTierModel(m *tierModel) (*tier.Definition, error) {
	tierID, err := id.ParseTierDefinitionID(m.ID)
	if err != nil {
		return nil, err
	}

	d := &tier.Definition{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              tierID,
		TierKey:         m.TierKey,
		HierarchyWeight: m.HierarchyWeight,
	}
	unmarshalJSON(m.Aliases, &d.Aliases)
	unmarshalJSON(m.StripePriceIDs, &d.StripePriceIDs)
	unmarshalJSON(m.Metadata, &d.Metadata)
	return d, nil
}

// ==================== Token record models ====================

type tokenRecordModel struct {
	grove.BaseModel `grove:"table:cascade_token_records"`

	ID         string    `grove:"id,pk"`
	ScopeLevel string    `grove:"scope_level"`
	VerticalID string    `grove:"vertical_id"`
	PlanTier   string    `grove:"plan_tier"`
	TenantID   string    `grove:"tenant_id"`
	Payload    string    `grove:"payload"`
	Active     bool      `grove:"active"`
	Weight     int       `grove:"weight"`
	ChangedAt  time.Time `grove:"changed_at"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
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

	ID         string    `grove:"id,pk"`
	VerticalID string    `grove:"vertical_id"`
	TierKey    string    `grove:"tier_key"`
	Features   string    `grove:"features"`
	Limits     string    `grove:"limits"`
	Active     bool      `grove:"active"`
	ChangedAt  time.Time `grove:"changed_at"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toFeatureLimitModel(rec *feature.LimitRecord) *featureLimitModel {
	return &featureLimitModel{
		ID:         rec.ID.String(),
		VerticalID: rec.VerticalID,
		TierKey:    rec.TierKey,
		Features:   marshalJSON(rec.Features),
		Limits:     marshalJSON(rec.Limits),
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

	rec := &feature.LimitRecord{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         recID,
		VerticalID: m.VerticalID,
		TierKey:    m.TierKey,
		Active:     m.Active,
		ChangedAt:  m.ChangedAt,
	}
	unmarshalJSON(m.Features, &rec.Features)
	unmarshalJSON(m.Limits, &rec.Limits)
	return rec, nil
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

// ==================== JSON helpers ====================

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func unmarshalJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v) //nolint:errcheck // best-effort
}
