// Package plugin provides an extensible plugin system for Cascade.
// Plugins can hook into resolution and entitlement lifecycle events to
// extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/cascade/entitlement"
	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnTierRegistryLoaded is called after the tier registry is built or
// reloaded.
type OnTierRegistryLoaded interface {
	Plugin
	OnTierRegistryLoaded(ctx context.Context, registry *tier.Registry) error
}

// ──────────────────────────────────────────────────
// Resolution hooks
// ──────────────────────────────────────────────────

// OnTokensResolved is called after a token cascade resolution.
type OnTokensResolved interface {
	Plugin
	OnTokensResolved(ctx context.Context, sctx scope.Context, set *token.Set) error
}

// OnEntitlementsResolved is called after a (vertical, tier) entitlement
// resolution.
type OnEntitlementsResolved interface {
	Plugin
	OnEntitlementsResolved(ctx context.Context, ents *feature.Entitlements) error
}

// OnRecordSkipped is called when resolution skips a malformed token record.
type OnRecordSkipped interface {
	Plugin
	OnRecordSkipped(ctx context.Context, rec *token.Record, reason string) error
}

// OnCacheRevalidated is called after every resolution-cache lookup.
type OnCacheRevalidated interface {
	Plugin
	OnCacheRevalidated(ctx context.Context, kind, key string, hit bool) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked is called for every authorization decision.
type OnEntitlementChecked interface {
	Plugin
	OnEntitlementChecked(ctx context.Context, req entitlement.Request, decision entitlement.Decision) error
}

// OnUpgradeTriggered is called when a tenant exhausts a positive limit.
type OnUpgradeTriggered interface {
	Plugin
	OnUpgradeTriggered(ctx context.Context, event *entitlement.Event) error
}

// OnUsageRecorded is called after a usage counter increment.
type OnUsageRecorded interface {
	Plugin
	OnUsageRecorded(ctx context.Context, tenantID, featureKey, periodID string, count int64) error
}
