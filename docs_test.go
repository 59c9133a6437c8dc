package cascade_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/entitlement"
	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/store/memory"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// seedStore fills a memory store with a small but complete catalog: a full
// platform token layer, two tiers, a vertical override, and a metered
// feature with an upgrade rule.
func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()

	if err := s.SaveTierDefinitions(ctx, []*tier.Definition{
		{
			Entity:          types.NewEntity(),
			ID:              id.NewTierDefinitionID(),
			TierKey:         "starter",
			Aliases:         []string{"basic", "t1"},
			HierarchyWeight: 10,
		},
		{
			Entity:          types.NewEntity(),
			ID:              id.NewTierDefinitionID(),
			TierKey:         "pro",
			Aliases:         []string{"premium", "t2"},
			HierarchyWeight: 20,
			StripePriceIDs:  []string{"price_123"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	platform, err := token.NewRecord(scope.Platform(), token.Values{
		token.CategoryColor:            {"primary": "#111111", "secondary": "#222222"},
		token.CategoryTypography:       {"font_family": "Inter"},
		token.CategorySpacing:          {"base": "4px"},
		token.CategoryEffect:           {"shadow": "none"},
		token.CategoryComponentVariant: {"button": "rounded"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTokenRecord(ctx, platform); err != nil {
		t.Fatal(err)
	}

	vertical, err := token.NewRecord(scope.Vertical("agroconecta"), token.Values{
		token.CategoryColor: {"primary": "#FF8C42"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTokenRecord(ctx, vertical); err != nil {
		t.Fatal(err)
	}

	if err := s.SaveFeatureLimitRecord(ctx, &feature.LimitRecord{
		Entity:     types.NewEntity(),
		ID:         id.NewFeatureLimitID(),
		VerticalID: feature.DefaultVertical,
		TierKey:    "starter",
		Features:   []string{"copilot"},
		Limits:     map[string]int64{"copilot_uses_per_month": 2, "pages": feature.Unlimited},
		Active:     true,
		ChangedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.SaveLimitRule(ctx, &feature.LimitRule{
		Entity:             types.NewEntity(),
		ID:                 id.NewLimitRuleID(),
		VerticalID:         feature.DefaultVertical,
		TierKey:            "starter",
		FeatureKey:         "copilot_uses_per_month",
		LimitValue:         2,
		UpgradeMessage:     "You used all {limit} copilot runs on {tier}.",
		ExpectedConversion: 0.08,
	}); err != nil {
		t.Fatal(err)
	}

	return s
}

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		store := seedStore(t)

		engine := cascade.New(store,
			cascade.WithLogger(slog.Default()),
			cascade.WithCSSPrefix("ej"),
		)

		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// Tier aliases normalize to canonical keys.
		tierKey, err := engine.NormalizeTier("Premium")
		if err != nil {
			t.Fatal(err)
		}
		if tierKey != "pro" {
			t.Errorf("NormalizeTier = %q, want pro", tierKey)
		}

		// Token resolution cascades platform -> vertical -> plan -> tenant.
		set, err := engine.ResolveTokens(ctx, scope.Context{
			VerticalID: "agroconecta",
			TierKey:    "basic",
			TenantID:   "T42",
		})
		if err != nil {
			t.Fatal(err)
		}
		if got, _ := set.Get(token.CategoryColor, "primary"); got != "#FF8C42" {
			t.Errorf("color.primary = %q, want vertical override", got)
		}
		if got, _ := set.Get(token.CategoryColor, "secondary"); got != "#222222" {
			t.Errorf("color.secondary = %q, want platform value", got)
		}

		// The same resolution renders as CSS custom properties.
		vars, err := engine.CSSVariables(ctx, scope.Context{TenantID: "T42"})
		if err != nil {
			t.Fatal(err)
		}
		if len(vars) == 0 {
			t.Fatal("expected CSS variables from the platform layer")
		}
		if !strings.HasPrefix(vars[0].Name, "--ej-") {
			t.Errorf("CSS variables should use the configured prefix, got %q", vars[0].Name)
		}

		// Entitlements resolve through the _default vertical fallback.
		ents, err := engine.ResolveEntitlements(ctx, "emprendimiento", "basic")
		if err != nil {
			t.Fatal(err)
		}
		if ents.LimitFor("copilot_uses_per_month") != 2 {
			t.Errorf("limit = %d, want 2", ents.LimitFor("copilot_uses_per_month"))
		}

		// Authorize consumes quota and blocks with an upgrade offer.
		req := entitlement.Request{
			TenantID:   "T42",
			VerticalID: "emprendimiento",
			TierKey:    "basic",
			FeatureKey: "copilot_uses_per_month",
			PeriodID:   "2026-02",
		}
		for i := 0; i < 2; i++ {
			decision, err := engine.Authorize(ctx, req)
			if err != nil {
				t.Fatal(err)
			}
			if !decision.Allowed {
				t.Fatalf("call %d should be allowed", i+1)
			}
		}
		decision, err := engine.Authorize(ctx, req)
		if err != nil {
			t.Fatal(err)
		}
		if decision.Allowed {
			t.Error("third call should be blocked")
		}
		if decision.Upgrade == nil || decision.Upgrade.Message != "You used all 2 copilot runs on starter." {
			t.Errorf("unexpected upgrade %+v", decision.Upgrade)
		}

		// Unlimited features never block.
		decision, err = engine.Authorize(ctx, entitlement.Request{
			TenantID:   "T42",
			VerticalID: "emprendimiento",
			TierKey:    "basic",
			FeatureKey: "pages",
			PeriodID:   "2026-02",
		})
		if err != nil {
			t.Fatal(err)
		}
		if !decision.Allowed || !decision.Unlimited {
			t.Errorf("unlimited feature decision = %+v", decision)
		}

		// Usage is visible without consuming quota.
		used, err := engine.Usage(ctx, "T42", "copilot_uses_per_month", "2026-02")
		if err != nil {
			t.Fatal(err)
		}
		if used != 3 {
			t.Errorf("usage = %d, want 3 (two allowed, one blocked attempt)", used)
		}
	})
}

func TestStartRefusesIncompletePlatformLayer(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	// A platform layer missing whole categories is unusable.
	rec, err := token.NewRecord(scope.Platform(), token.Values{
		token.CategoryColor: {"primary": "#111111"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTokenRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	engine := cascade.New(s)
	err = engine.Start(ctx)
	if err == nil {
		t.Fatal("Start must refuse an incomplete platform layer")
	}
	var scopeErr *cascade.ScopeNotFoundError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("err = %v, want *ScopeNotFoundError", err)
	}
}

func TestUnknownTierLabelErrors(t *testing.T) {
	store := seedStore(t)
	engine := cascade.New(store)
	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	if _, err := engine.NormalizeTier("enterprise-legacy"); !cascade.IsNotFound(err) {
		t.Errorf("unknown label should be a not-found error, got %v", err)
	}

	// The opt-in fallback maps unknown labels to the lowest tier.
	tierKey, err := engine.NormalizeTierOrLowest("enterprise-legacy")
	if err != nil {
		t.Fatal(err)
	}
	if tierKey != "starter" {
		t.Errorf("NormalizeTierOrLowest = %q, want starter", tierKey)
	}
}

func TestReloadTiers(t *testing.T) {
	store := seedStore(t)
	engine := cascade.New(store)
	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	if err := engine.SaveTierDefinitions(ctx, []*tier.Definition{
		{
			Entity:          types.NewEntity(),
			ID:              id.NewTierDefinitionID(),
			TierKey:         "starter",
			HierarchyWeight: 10,
		},
		{
			Entity:          types.NewEntity(),
			ID:              id.NewTierDefinitionID(),
			TierKey:         "scale",
			Aliases:         []string{"growth"},
			HierarchyWeight: 30,
		},
	}); err != nil {
		t.Fatal(err)
	}

	tierKey, err := engine.NormalizeTier("growth")
	if err != nil {
		t.Fatal(err)
	}
	if tierKey != "scale" {
		t.Errorf("NormalizeTier after reload = %q, want scale", tierKey)
	}
}
