package tier

import (
	"errors"
	"testing"
)

func testDefinitions() []*Definition {
	return []*Definition{
		{TierKey: "starter", Aliases: []string{"free", "freemium"}, HierarchyWeight: 0},
		{TierKey: "professional", Aliases: []string{"pro", "Professional Plan"}, HierarchyWeight: 10},
		{TierKey: "enterprise", Aliases: []string{"Enterprise", "business"}, HierarchyWeight: 20},
	}
}

func TestResolveAliases(t *testing.T) {
	r, err := NewRegistry(testDefinitions())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		label string
		want  string
	}{
		{"starter", "starter"},
		{"free", "starter"},
		{"  FREE  ", "starter"},
		{"Pro", "professional"},
		{"professional plan", "professional"},
		{"BUSINESS", "enterprise"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := r.Resolve(tt.label)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestResolveSelfAlias(t *testing.T) {
	// Every canonical tier key resolves to itself even when the definition's
	// alias list omits it.
	r, err := NewRegistry(testDefinitions())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, def := range testDefinitions() {
		got, err := r.Resolve(def.TierKey)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", def.TierKey, err)
		}
		if got != def.TierKey {
			t.Errorf("Resolve(%q) = %q, want self", def.TierKey, got)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	r, err := NewRegistry(testDefinitions())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := r.Resolve("platinum"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Explicit opt-in fallback assumes the lowest tier.
	if got := r.ResolveOrLowest("platinum"); got != "starter" {
		t.Errorf("ResolveOrLowest = %q, want starter", got)
	}
}

func TestAliasConflict(t *testing.T) {
	defs := []*Definition{
		{TierKey: "starter", Aliases: []string{"free"}, HierarchyWeight: 0},
		{TierKey: "basic", Aliases: []string{"FREE"}, HierarchyWeight: 5},
	}

	_, err := NewRegistry(defs)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Field != "alias" || conflict.Value != "free" {
		t.Errorf("unexpected conflict: %+v", conflict)
	}
}

func TestDuplicateTierKey(t *testing.T) {
	defs := []*Definition{
		{TierKey: "starter", HierarchyWeight: 0},
		{TierKey: "Starter", HierarchyWeight: 5},
	}

	_, err := NewRegistry(defs)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Field != "tier_key" {
		t.Errorf("unexpected conflict field %q", conflict.Field)
	}
}

func TestDuplicateWeight(t *testing.T) {
	defs := []*Definition{
		{TierKey: "starter", HierarchyWeight: 0},
		{TierKey: "basic", HierarchyWeight: 0},
	}

	if _, err := NewRegistry(defs); err == nil {
		t.Error("expected weight conflict error")
	}
}

func TestHierarchyOrdering(t *testing.T) {
	r, err := NewRegistry(testDefinitions())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if r.Compare("starter", "enterprise") >= 0 {
		t.Error("starter should rank below enterprise")
	}
	if r.Compare("enterprise", "professional") <= 0 {
		t.Error("enterprise should rank above professional")
	}
	if r.Lowest().TierKey != "starter" {
		t.Errorf("Lowest = %q, want starter", r.Lowest().TierKey)
	}

	ordered := r.Definitions()
	for i := 1; i < len(ordered); i++ {
		if ordered[i].HierarchyWeight <= ordered[i-1].HierarchyWeight {
			t.Errorf("Definitions not in ascending weight order at %d", i)
		}
	}
}
