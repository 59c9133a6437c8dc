package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

type stubStore struct {
	tokenRecords map[string][]*token.Record
	limitRecords map[string]*feature.LimitRecord

	fullTokenLoads   int
	metaTokenLoads   int
	fullFeatureLoads int
	metaFeatureLoads int
}

func newStubStore() *stubStore {
	return &stubStore{
		tokenRecords: make(map[string][]*token.Record),
		limitRecords: make(map[string]*feature.LimitRecord),
	}
}

func (s *stubStore) LoadActiveTokenRecords(_ context.Context, key scope.Key) ([]*token.Record, error) {
	s.fullTokenLoads++
	return s.tokenRecords[key.String()], nil
}

func (s *stubStore) LoadTokenRecordMeta(_ context.Context, keys []scope.Key) ([]types.RecordMeta, error) {
	s.metaTokenLoads++
	var metas []types.RecordMeta
	for _, key := range keys {
		for _, rec := range s.tokenRecords[key.String()] {
			metas = append(metas, rec.Meta())
		}
	}
	return metas, nil
}

func (s *stubStore) LoadFeatureLimitRecord(_ context.Context, verticalID, tierKey string) (*feature.LimitRecord, error) {
	s.fullFeatureLoads++
	return s.limitRecords[verticalID+"/"+tierKey], nil
}

func (s *stubStore) LoadFeatureLimitMeta(_ context.Context, verticalID, tierKey string) ([]types.RecordMeta, error) {
	s.metaFeatureLoads++
	var metas []types.RecordMeta
	if rec, ok := s.limitRecords[verticalID+"/"+tierKey]; ok {
		metas = append(metas, rec.Meta())
	}
	if verticalID != feature.DefaultVertical {
		if rec, ok := s.limitRecords[feature.DefaultVertical+"/"+tierKey]; ok {
			metas = append(metas, rec.Meta())
		}
	}
	return metas, nil
}

func (s *stubStore) LoadLimitRule(_ context.Context, _, _, _ string) (*feature.LimitRule, error) {
	return nil, nil
}

func (s *stubStore) addTokenRecord(t *testing.T, key scope.Key, values token.Values) *token.Record {
	t.Helper()
	rec, err := token.NewRecord(key, values)
	if err != nil {
		t.Fatal(err)
	}
	s.tokenRecords[key.String()] = append(s.tokenRecords[key.String()], rec)
	return rec
}

func newCache(s *stubStore, opts ...Option) *Cache {
	return New(token.NewMerger(s), feature.NewResolver(s), s, s, opts...)
}

func TestTokenHitServedWithoutFullLoad(t *testing.T) {
	s := newStubStore()
	s.addTokenRecord(t, scope.Platform(), token.Values{
		token.CategoryColor: {"primary": "#111111"},
	})
	s.addTokenRecord(t, scope.Vertical("agroconecta"), token.Values{
		token.CategoryColor: {"primary": "#FF8C42"},
	})

	c := newCache(s)
	ctx := context.Background()
	sctx := scope.Context{VerticalID: "agroconecta", TierKey: "starter", TenantID: "T3"}

	first, err := c.ResolveTokens(ctx, sctx)
	if err != nil {
		t.Fatal(err)
	}
	loadsAfterMiss := s.fullTokenLoads

	second, err := c.ResolveTokens(ctx, sctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.fullTokenLoads != loadsAfterMiss {
		t.Errorf("hit ran %d extra full loads", s.fullTokenLoads-loadsAfterMiss)
	}
	if s.metaTokenLoads == 0 {
		t.Error("hit must revalidate with a metadata load")
	}
	if second != first {
		t.Error("revalidated hit should serve the cached set")
	}
	if got, _ := second.Get(token.CategoryColor, "primary"); got != "#FF8C42" {
		t.Errorf("color.primary = %q, want #FF8C42", got)
	}
}

func TestChangedRecordRecomputes(t *testing.T) {
	s := newStubStore()
	rec := s.addTokenRecord(t, scope.Platform(), token.Values{
		token.CategoryColor: {"primary": "#111111"},
	})

	c := newCache(s)
	ctx := context.Background()
	sctx := scope.Context{VerticalID: "agroconecta", TierKey: "starter", TenantID: "T3"}

	if _, err := c.ResolveTokens(ctx, sctx); err != nil {
		t.Fatal(err)
	}

	// An admin edit bumps changed_at; the next lookup must not serve the
	// stale set.
	rec.Payload = []byte(`{"color":{"primary":"#333333"}}`)
	rec.ChangedAt = rec.ChangedAt.Add(time.Minute)

	set, err := c.ResolveTokens(ctx, sctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := set.Get(token.CategoryColor, "primary"); got != "#333333" {
		t.Errorf("color.primary = %q, want recomputed #333333", got)
	}
}

func TestNewRecordAtAnyScopeRecomputes(t *testing.T) {
	s := newStubStore()
	s.addTokenRecord(t, scope.Platform(), token.Values{
		token.CategoryColor: {"primary": "#111111"},
	})

	c := newCache(s)
	ctx := context.Background()
	sctx := scope.Context{VerticalID: "agroconecta", TierKey: "starter", TenantID: "T3"}

	if _, err := c.ResolveTokens(ctx, sctx); err != nil {
		t.Fatal(err)
	}

	s.addTokenRecord(t, scope.Tenant("T3"), token.Values{
		token.CategoryColor: {"primary": "#00B894"},
	})

	set, err := c.ResolveTokens(ctx, sctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := set.Get(token.CategoryColor, "primary"); got != "#00B894" {
		t.Errorf("color.primary = %q, want tenant override #00B894", got)
	}
}

func TestEntitlementHitAndExactRecordInvalidation(t *testing.T) {
	s := newStubStore()
	s.limitRecords[feature.DefaultVertical+"/starter"] = &feature.LimitRecord{
		Entity:     types.NewEntity(),
		ID:         id.NewFeatureLimitID(),
		VerticalID: feature.DefaultVertical,
		TierKey:    "starter",
		Limits:     map[string]int64{"pages": 3},
		Active:     true,
		ChangedAt:  time.Now().UTC(),
	}

	c := newCache(s)
	ctx := context.Background()

	ents, err := c.Resolve(ctx, "emprendimiento", "starter")
	if err != nil {
		t.Fatal(err)
	}
	if ents.LimitFor("pages") != 3 {
		t.Fatalf("fallback limit = %d, want 3", ents.LimitFor("pages"))
	}
	loadsAfterMiss := s.fullFeatureLoads

	if _, err := c.Resolve(ctx, "emprendimiento", "starter"); err != nil {
		t.Fatal(err)
	}
	if s.fullFeatureLoads != loadsAfterMiss {
		t.Error("unchanged records must serve from cache")
	}

	// Creating the exact-pair record must invalidate the cached fallback
	// resolution.
	s.limitRecords["emprendimiento/starter"] = &feature.LimitRecord{
		Entity:     types.NewEntity(),
		ID:         id.NewFeatureLimitID(),
		VerticalID: "emprendimiento",
		TierKey:    "starter",
		Limits:     map[string]int64{"pages": 10},
		Active:     true,
		ChangedAt:  time.Now().UTC(),
	}

	ents, err = c.Resolve(ctx, "emprendimiento", "starter")
	if err != nil {
		t.Fatal(err)
	}
	if ents.LimitFor("pages") != 10 {
		t.Errorf("limit after exact record = %d, want 10", ents.LimitFor("pages"))
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	a := types.RecordMeta{ID: id.NewTokenRecordID(), ChangedAt: time.Now().UTC()}
	b := types.RecordMeta{ID: id.NewTokenRecordID(), ChangedAt: time.Now().UTC().Add(time.Hour)}

	fp1 := Fingerprint([]types.RecordMeta{a, b})
	fp2 := Fingerprint([]types.RecordMeta{b, a})
	if fp1 != fp2 {
		t.Error("fingerprint must be order independent")
	}

	moved := b
	moved.ChangedAt = moved.ChangedAt.Add(time.Second)
	if Fingerprint([]types.RecordMeta{a, moved}) == fp1 {
		t.Error("changed_at bump must change the fingerprint")
	}
}

func TestSeparatorIDsDoNotShareSlots(t *testing.T) {
	s := newStubStore()
	s.addTokenRecord(t, scope.Platform(), token.Values{
		token.CategoryColor: {"primary": "#111111"},
	})
	s.addTokenRecord(t, scope.Vertical("a"), token.Values{
		token.CategoryColor: {"primary": "#AAAAAA"},
	})
	s.addTokenRecord(t, scope.Vertical("a/b"), token.Values{
		token.CategoryColor: {"primary": "#BBBBBB"},
	})

	c := newCache(s)
	ctx := context.Background()

	// Both contexts flatten to "a/b/c" under naive slash-joined keys.
	ctx1 := scope.Context{VerticalID: "a", TierKey: "b/c"}
	ctx2 := scope.Context{VerticalID: "a/b", TierKey: "c"}

	set1, err := c.ResolveTokens(ctx, ctx1)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := set1.Get(token.CategoryColor, "primary"); got != "#AAAAAA" {
		t.Errorf("ctx1 primary = %q, want #AAAAAA", got)
	}

	set2, err := c.ResolveTokens(ctx, ctx2)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := set2.Get(token.CategoryColor, "primary"); got != "#BBBBBB" {
		t.Errorf("ctx2 primary = %q, want #BBBBBB", got)
	}

	// Each context keeps its own slot: resolving ctx1 again is a hit and
	// triggers no further full loads.
	loads := s.fullTokenLoads
	set1, err = c.ResolveTokens(ctx, ctx1)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := set1.Get(token.CategoryColor, "primary"); got != "#AAAAAA" {
		t.Errorf("ctx1 primary after ctx2 = %q, want #AAAAAA", got)
	}
	if s.fullTokenLoads != loads {
		t.Errorf("full loads = %d, want %d (hit must not reload)", s.fullTokenLoads, loads)
	}
}

func TestRevalidateCallback(t *testing.T) {
	s := newStubStore()
	s.addTokenRecord(t, scope.Platform(), token.Values{
		token.CategoryColor: {"primary": "#111111"},
	})

	type outcome struct {
		kind Kind
		hit  bool
	}
	var outcomes []outcome
	c := newCache(s, WithRevalidateFunc(func(_ context.Context, kind Kind, _ string, hit bool) {
		outcomes = append(outcomes, outcome{kind, hit})
	}))

	ctx := context.Background()
	sctx := scope.Context{TenantID: "T3"}
	if _, err := c.ResolveTokens(ctx, sctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ResolveTokens(ctx, sctx); err != nil {
		t.Fatal(err)
	}

	want := []outcome{{KindTokens, false}, {KindTokens, true}}
	if len(outcomes) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(want))
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcome[%d] = %+v, want %+v", i, outcomes[i], want[i])
		}
	}
}
