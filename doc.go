// Package cascade provides a cascading configuration and entitlement
// resolution engine for multi-tenant Go applications.
//
// Cascade is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - Scope-cascade resolution of design tokens (platform, vertical, plan,
//     tenant) with key-level overrides
//   - Tier alias normalization over a conflict-checked tier catalog
//   - Feature and limit resolution per (vertical, tier) with a _default
//     vertical fallback
//   - Atomic per-period usage metering
//   - Entitlement gating with upgrade signals for exhausted limits
//   - A fingerprint-revalidated resolution cache that never serves stale
//     record revisions
//
// # Quick Start
//
// Create an engine instance with your preferred store:
//
//	import (
//	    "github.com/xraph/cascade"
//	    "github.com/xraph/cascade/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	engine := cascade.New(store)
//
//	// Start the engine (runs migrations, loads the tier catalog)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Token records hold partial design-token maps at one scope; resolution
// walks the cascade from platform to tenant, each scope overriding
// individual keys:
//
//	set, err := engine.ResolveTokens(ctx, scope.Context{
//	    VerticalID: "agroconecta",
//	    TierKey:    "pro",
//	    TenantID:   "T42",
//	})
//	vars, _ := engine.CSSVariables(ctx, sctx) // --ej-color-primary: ...
//
// Feature limits define what a plan may do inside a vertical, with -1
// meaning unlimited and 0 (or absence) meaning disabled:
//
//	ents, err := engine.ResolveEntitlements(ctx, "emprendimiento", "starter")
//
// Authorize checks and consumes one unit of a metered feature:
//
//	decision, err := engine.Authorize(ctx, entitlement.Request{
//	    TenantID:   "T42",
//	    VerticalID: "emprendimiento",
//	    TierKey:    "starter",
//	    FeatureKey: "copilot_uses_per_month",
//	})
//	if decision.Allowed {
//	    // Serve the request
//	} else if decision.Upgrade != nil {
//	    // Show decision.Upgrade.Message
//	}
//
// # Consistency
//
// The resolution cache revalidates every hit against the store with a
// metadata-only query over the contributing records' (id, changed_at)
// pairs, so a cached resolution is served only while the exact record
// revisions that produced it are still current. Usage counters increment
// atomically in the store; concurrent exhaustion of a limit can overshoot
// by at most one unit per concurrent caller, and never under-counts.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	tier_01h2xcejqtf2nbrexx3vqjhp41  // Tier definition ID
//	tok_01h2xcejqtf2nbrexx3vqjhp41   // Token record ID
//	flr_01h455vb4pex5vsknk084sn02q   // Feature limit ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package cascade
