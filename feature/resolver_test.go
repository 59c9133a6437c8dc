package feature

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/types"
)

type stubStore struct {
	records map[string]*LimitRecord // "vertical|tier"
	rules   map[string]*LimitRule   // "vertical|tier|feature"
	err     error
}

func (s *stubStore) LoadFeatureLimitRecord(_ context.Context, verticalID, tierKey string) (*LimitRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[verticalID+"|"+tierKey], nil
}

func (s *stubStore) LoadFeatureLimitMeta(_ context.Context, verticalID, tierKey string) ([]types.RecordMeta, error) {
	if s.err != nil {
		return nil, s.err
	}
	meta := make([]types.RecordMeta, 0, 2)
	if rec := s.records[verticalID+"|"+tierKey]; rec != nil {
		meta = append(meta, rec.Meta())
	}
	if rec := s.records[DefaultVertical+"|"+tierKey]; rec != nil && verticalID != DefaultVertical {
		meta = append(meta, rec.Meta())
	}
	return meta, nil
}

func (s *stubStore) LoadLimitRule(_ context.Context, verticalID, tierKey, featureKey string) (*LimitRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rules[verticalID+"|"+tierKey+"|"+featureKey], nil
}

func (s *stubStore) add(rec *LimitRecord) {
	if s.records == nil {
		s.records = make(map[string]*LimitRecord)
	}
	rec.ID = id.NewFeatureLimitID()
	rec.Active = true
	s.records[rec.VerticalID+"|"+rec.TierKey] = rec
}

func TestExactMatchWins(t *testing.T) {
	st := &stubStore{}
	st.add(&LimitRecord{
		VerticalID: DefaultVertical,
		TierKey:    "starter",
		Features:   []string{"site_builder"},
		Limits:     map[string]int64{"pages": 3},
	})
	st.add(&LimitRecord{
		VerticalID: "agroconecta",
		TierKey:    "starter",
		Features:   []string{"site_builder", "marketplace"},
		Limits:     map[string]int64{"pages": 5, "listings": 10},
	})

	ents, err := NewResolver(st).Resolve(context.Background(), "agroconecta", "starter")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ents.LimitFor("pages") != 5 {
		t.Errorf("pages = %d, want exact-record 5", ents.LimitFor("pages"))
	}
	if !ents.HasFeature("marketplace") {
		t.Error("exact record features missing")
	}
}

func TestDefaultFallbackNoMerge(t *testing.T) {
	st := &stubStore{}
	st.add(&LimitRecord{
		VerticalID: DefaultVertical,
		TierKey:    "starter",
		Features:   []string{"site_builder"},
		Limits:     map[string]int64{"pages": 3, "copilot_uses_per_month": 5},
	})

	// No record for (agroconecta, starter): the _default record is returned
	// unmodified, not merged with anything.
	ents, err := NewResolver(st).Resolve(context.Background(), "agroconecta", "starter")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(ents.Features, []string{"site_builder"}) {
		t.Errorf("Features = %v, want _default record unmodified", ents.Features)
	}
	if !reflect.DeepEqual(ents.Limits, map[string]int64{"pages": 3, "copilot_uses_per_month": 5}) {
		t.Errorf("Limits = %v, want _default record unmodified", ents.Limits)
	}
}

func TestAbsenceMeansDisabled(t *testing.T) {
	st := &stubStore{}
	st.add(&LimitRecord{
		VerticalID: DefaultVertical,
		TierKey:    "starter",
		Limits:     map[string]int64{"pages": 3},
	})

	ents, err := NewResolver(st).Resolve(context.Background(), "agroconecta", "starter")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// A key absent from limits is not entitled, never unlimited.
	if got := ents.LimitFor("video_upload"); got != Disabled {
		t.Errorf("absent key limit = %d, want Disabled", got)
	}
	if ents.HasFeature("video_upload") {
		t.Error("absent feature should not be present")
	}
}

func TestNoRecordAtAll(t *testing.T) {
	ents, err := NewResolver(&stubStore{}).Resolve(context.Background(), "agroconecta", "starter")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ents.Features) != 0 || len(ents.Limits) != 0 {
		t.Errorf("missing records should resolve to empty entitlements, got %+v", ents)
	}
}

func TestMetaCoversFallback(t *testing.T) {
	st := &stubStore{}
	st.add(&LimitRecord{
		VerticalID: DefaultVertical,
		TierKey:    "starter",
		Limits:     map[string]int64{"pages": 3},
	})

	_, meta, err := NewResolver(st).ResolveWithMeta(context.Background(), "agroconecta", "starter")
	if err != nil {
		t.Fatalf("ResolveWithMeta: %v", err)
	}
	if len(meta) != 1 {
		t.Errorf("fingerprint metadata should cover the fallback record, got %d entries", len(meta))
	}
}

func TestRuleFallback(t *testing.T) {
	rule := &LimitRule{
		VerticalID:         DefaultVertical,
		TierKey:            "starter",
		FeatureKey:         "copilot_uses_per_month",
		LimitValue:         5,
		UpgradeMessage:     "Upgrade from {tier} to keep using {feature} (limit {limit})",
		ExpectedConversion: 0.12,
	}
	st := &stubStore{rules: map[string]*LimitRule{
		DefaultVertical + "|starter|copilot_uses_per_month": rule,
	}}

	got, err := NewResolver(st).Rule(context.Background(), "emprendimiento", "starter", "copilot_uses_per_month")
	if err != nil {
		t.Fatalf("Rule: %v", err)
	}
	if got == nil || got.ExpectedConversion != 0.12 {
		t.Fatalf("expected fallback rule, got %+v", got)
	}

	msg := got.RenderMessage("emprendimiento", "starter", 5)
	want := "Upgrade from starter to keep using copilot_uses_per_month (limit 5)"
	if msg != want {
		t.Errorf("RenderMessage = %q, want %q", msg, want)
	}
}

func TestStoreErrorSurfaced(t *testing.T) {
	unavailable := errors.New("connection refused")
	if _, err := NewResolver(&stubStore{err: unavailable}).Resolve(context.Background(), "v", "t"); !errors.Is(err, unavailable) {
		t.Errorf("store errors must surface verbatim, got %v", err)
	}
}
