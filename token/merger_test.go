package token

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/types"
)

type stubStore struct {
	records map[string][]*Record
	err     error
}

func (s *stubStore) LoadActiveTokenRecords(_ context.Context, key scope.Key) ([]*Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[key.String()], nil
}

func (s *stubStore) LoadTokenRecordMeta(_ context.Context, keys []scope.Key) ([]types.RecordMeta, error) {
	if s.err != nil {
		return nil, s.err
	}
	meta := make([]types.RecordMeta, 0)
	for _, key := range keys {
		for _, rec := range s.records[key.String()] {
			meta = append(meta, rec.Meta())
		}
	}
	return meta, nil
}

func (s *stubStore) add(t *testing.T, key scope.Key, values Values) *Record {
	t.Helper()
	rec, err := NewRecord(key, values)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if s.records == nil {
		s.records = make(map[string][]*Record)
	}
	s.records[key.String()] = append(s.records[key.String()], rec)
	return rec
}

func TestCascadeScenario(t *testing.T) {
	st := &stubStore{}
	st.add(t, scope.Platform(), Values{
		CategoryColor: {"primary": "#111111", "secondary": "#222222"},
	})
	st.add(t, scope.Vertical("agroconecta"), Values{
		CategoryColor: {"primary": "#FF8C42"},
	})
	st.add(t, scope.Tenant("T2"), Values{
		CategoryColor: {"primary": "#00B894"},
	})

	m := NewMerger(st)

	// T1 sets no override: vertical value wins, secondary inherits platform.
	set, err := m.Resolve(context.Background(), scope.Context{
		VerticalID: "agroconecta", TierKey: "starter", TenantID: "T1",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := set.Get(CategoryColor, "primary"); v != "#FF8C42" {
		t.Errorf("T1 color.primary = %q, want #FF8C42", v)
	}
	if v, _ := set.Get(CategoryColor, "secondary"); v != "#222222" {
		t.Errorf("T1 color.secondary = %q, want #222222", v)
	}

	// T2 overrides primary; secondary still falls back to platform.
	set, err = m.Resolve(context.Background(), scope.Context{
		VerticalID: "agroconecta", TierKey: "starter", TenantID: "T2",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := set.Get(CategoryColor, "primary"); v != "#00B894" {
		t.Errorf("T2 color.primary = %q, want #00B894", v)
	}
	if v, _ := set.Get(CategoryColor, "secondary"); v != "#222222" {
		t.Errorf("T2 color.secondary = %q, want #222222", v)
	}
}

func TestKeyLevelOverride(t *testing.T) {
	// A tenant override of one key must never erase sibling keys in the
	// same category inherited from lower scopes.
	st := &stubStore{}
	st.add(t, scope.Platform(), Values{
		CategoryTypography: {"font_family": "Inter", "base_size": "16px", "scale": "1.25"},
	})
	st.add(t, scope.Tenant("T1"), Values{
		CategoryTypography: {"base_size": "18px"},
	})

	set, err := NewMerger(st).Resolve(context.Background(), scope.Context{TenantID: "T1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := map[string]string{
		"typography.font_family": "Inter",
		"typography.base_size":   "18px",
		"typography.scale":       "1.25",
	}
	for key, expected := range want {
		if v, _ := set.Value(key); v != expected {
			t.Errorf("%s = %q, want %q", key, v, expected)
		}
	}
}

func TestSameScopeTieBreak(t *testing.T) {
	st := &stubStore{}
	low := st.add(t, scope.Platform(), Values{CategoryColor: {"primary": "#aaaaaa"}})
	high := st.add(t, scope.Platform(), Values{CategoryColor: {"primary": "#bbbbbb"}})
	low.Weight = 1
	high.Weight = 5

	set, err := NewMerger(st).Resolve(context.Background(), scope.Context{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := set.Get(CategoryColor, "primary"); v != "#bbbbbb" {
		t.Errorf("higher weight should win, got %q", v)
	}

	// Equal weight: the later changed_at wins.
	low.Weight = 5
	low.ChangedAt = high.ChangedAt.Add(time.Hour)
	set, err = NewMerger(st).Resolve(context.Background(), scope.Context{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := set.Get(CategoryColor, "primary"); v != "#aaaaaa" {
		t.Errorf("later changed_at should win on weight tie, got %q", v)
	}
}

func TestMalformedRecordSkipped(t *testing.T) {
	st := &stubStore{}
	st.add(t, scope.Platform(), Values{CategoryColor: {"primary": "#111111"}})

	broken := &Record{
		ID:        id.NewTokenRecordID(),
		Scope:     scope.Tenant("T1"),
		Payload:   json.RawMessage(`{"color": "not an object"`),
		Active:    true,
		ChangedAt: time.Now(),
	}
	st.records[broken.Scope.String()] = append(st.records[broken.Scope.String()], broken)

	var skipped []*Record
	m := NewMerger(st, WithSkipFunc(func(_ context.Context, rec *Record, _ error) {
		skipped = append(skipped, rec)
	}))

	set, meta, err := m.ResolveWithMeta(context.Background(), scope.Context{TenantID: "T1"})
	if err != nil {
		t.Fatalf("parse failure must not end the request: %v", err)
	}

	// The key falls back to the platform value.
	if v, _ := set.Get(CategoryColor, "primary"); v != "#111111" {
		t.Errorf("color.primary = %q, want platform fallback", v)
	}
	if len(skipped) != 1 || skipped[0].ID != broken.ID {
		t.Errorf("expected one skipped record, got %v", skipped)
	}

	// The skipped record still contributes to the fingerprint metadata:
	// repairing it must invalidate cached resolutions.
	found := false
	for _, rm := range meta {
		if rm.ID == broken.ID {
			found = true
		}
	}
	if !found {
		t.Error("skipped record missing from resolution metadata")
	}
}

func TestUnknownCategoryRejected(t *testing.T) {
	rec := &Record{
		ID:      id.NewTokenRecordID(),
		Scope:   scope.Platform(),
		Payload: json.RawMessage(`{"gradient": {"hero": "linear"}}`),
		Active:  true,
	}

	_, err := rec.Decode()
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Category != "gradient" {
		t.Errorf("SchemaError category = %q, want gradient", schemaErr.Category)
	}
}

func TestStoreErrorSurfaced(t *testing.T) {
	unavailable := errors.New("connection refused")
	m := NewMerger(&stubStore{err: unavailable})

	if _, err := m.Resolve(context.Background(), scope.Context{}); !errors.Is(err, unavailable) {
		t.Errorf("store errors must surface verbatim, got %v", err)
	}
}

func TestCSSVariables(t *testing.T) {
	st := &stubStore{}
	st.add(t, scope.Platform(), Values{
		CategoryColor:   {"primary": "#111111"},
		CategorySpacing: {"gutter": "24px"},
	})

	set, err := NewMerger(st).Resolve(context.Background(), scope.Context{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	vars := set.CSSVariables("ej")
	want := map[string]string{
		"--ej-color-primary":  "#111111",
		"--ej-spacing-gutter": "24px",
	}
	if len(vars) != len(want) {
		t.Fatalf("expected %d variables, got %d", len(want), len(vars))
	}
	for _, v := range vars {
		if want[v.Name] != v.Value {
			t.Errorf("%s = %q, want %q", v.Name, v.Value, want[v.Name])
		}
	}
}
