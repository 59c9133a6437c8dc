package extension

import (
	"context"
	"errors"
	"testing"

	cascade "github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/store/memory"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// failingMigrateStore stands in for a production store whose migrations are
// applied out of band; calling Migrate on it is an error.
type failingMigrateStore struct {
	*memory.Store
}

func (s *failingMigrateStore) Migrate(context.Context) error {
	return errors.New("migrations are applied out of band")
}

func seedStore(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.SaveTierDefinitions(ctx, []*tier.Definition{
		{
			Entity:          types.NewEntity(),
			ID:              id.NewTierDefinitionID(),
			TierKey:         "starter",
			Aliases:         []string{"basic"},
			HierarchyWeight: 10,
		},
	}); err != nil {
		t.Fatal(err)
	}

	platform, err := token.NewRecord(scope.Platform(), token.Values{
		token.CategoryColor:            {"primary": "#111111"},
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
}

// The disable_migrate flag must only skip the store migration; the engine
// still has to come up and serve resolutions.
func TestDisableMigrateStillStartsEngine(t *testing.T) {
	st := &failingMigrateStore{Store: memory.New()}
	seedStore(t, st.Store)

	ext := New(WithStore(st), WithDisableMigrate())
	eng := cascade.New(st, ext.buildEngineOpts()...)

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start with disabled migration: %v", err)
	}

	got, err := eng.NormalizeTier("basic")
	if err != nil {
		t.Fatalf("NormalizeTier: %v", err)
	}
	if got != "starter" {
		t.Errorf("NormalizeTier = %q, want %q", got, "starter")
	}

	set, err := eng.ResolveTokens(ctx, scope.Context{TenantID: "T1"})
	if err != nil {
		t.Fatalf("ResolveTokens: %v", err)
	}
	if got, _ := set.Get(token.CategoryColor, "primary"); got != "#111111" {
		t.Errorf("primary = %q, want #111111", got)
	}
}

func TestMigrateRunsByDefault(t *testing.T) {
	st := &failingMigrateStore{Store: memory.New()}
	seedStore(t, st.Store)

	ext := New(WithStore(st))
	eng := cascade.New(st, ext.buildEngineOpts()...)

	if err := eng.Start(context.Background()); !errors.Is(err, cascade.ErrMigrationFailed) {
		t.Fatalf("Start = %v, want ErrMigrationFailed", err)
	}
}
