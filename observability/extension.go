// Package observability provides a metrics extension for Cascade that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/cascade/entitlement"
	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/plugin"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnTierRegistryLoaded   = (*MetricsExtension)(nil)
	_ plugin.OnTokensResolved       = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementsResolved = (*MetricsExtension)(nil)
	_ plugin.OnRecordSkipped        = (*MetricsExtension)(nil)
	_ plugin.OnCacheRevalidated     = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementChecked   = (*MetricsExtension)(nil)
	_ plugin.OnUpgradeTriggered     = (*MetricsExtension)(nil)
	_ plugin.OnUsageRecorded        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Cascade plugin to automatically track resolution and
// entitlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Resolution metrics
	TokenResolutions       Counter
	TokensPerResolution    Histogram
	EntitlementResolutions Counter
	RecordsSkipped         Counter

	// Cache metrics
	CacheHits   Counter
	CacheMisses Counter

	// Entitlement metrics
	EntitlementChecks Counter
	EntitlementDenied Counter
	UpgradesTriggered Counter

	// Usage metrics
	UsageIncrements Counter
	UsageCount      Histogram

	// Catalog metrics
	TierReloads Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Resolution metrics
		TokenResolutions:       factory.Counter("cascade.tokens.resolutions"),
		TokensPerResolution:    factory.Histogram("cascade.tokens.per_resolution"),
		EntitlementResolutions: factory.Counter("cascade.entitlements.resolutions"),
		RecordsSkipped:         factory.Counter("cascade.records.skipped"),

		// Cache metrics
		CacheHits:   factory.Counter("cascade.cache.hits"),
		CacheMisses: factory.Counter("cascade.cache.misses"),

		// Entitlement metrics
		EntitlementChecks: factory.Counter("cascade.entitlement.checks"),
		EntitlementDenied: factory.Counter("cascade.entitlement.denied"),
		UpgradesTriggered: factory.Counter("cascade.upgrade.triggered"),

		// Usage metrics
		UsageIncrements: factory.Counter("cascade.usage.increments"),
		UsageCount:      factory.Histogram("cascade.usage.count"),

		// Catalog metrics
		TierReloads: factory.Counter("cascade.tiers.reloads"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Resolution lifecycle hooks
// ──────────────────────────────────────────────────

// OnTierRegistryLoaded implements plugin.OnTierRegistryLoaded.
func (m *MetricsExtension) OnTierRegistryLoaded(_ context.Context, _ *tier.Registry) error {
	m.TierReloads.Inc()
	return nil
}

// OnTokensResolved implements plugin.OnTokensResolved.
func (m *MetricsExtension) OnTokensResolved(_ context.Context, _ scope.Context, set *token.Set) error {
	m.TokenResolutions.Inc()
	if set != nil {
		m.TokensPerResolution.Observe(float64(set.Len()))
	}
	return nil
}

// OnEntitlementsResolved implements plugin.OnEntitlementsResolved.
func (m *MetricsExtension) OnEntitlementsResolved(_ context.Context, _ *feature.Entitlements) error {
	m.EntitlementResolutions.Inc()
	return nil
}

// OnRecordSkipped implements plugin.OnRecordSkipped.
func (m *MetricsExtension) OnRecordSkipped(_ context.Context, _ *token.Record, _ string) error {
	m.RecordsSkipped.Inc()
	return nil
}

// OnCacheRevalidated implements plugin.OnCacheRevalidated.
func (m *MetricsExtension) OnCacheRevalidated(_ context.Context, _, _ string, hit bool) error {
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked implements plugin.OnEntitlementChecked.
func (m *MetricsExtension) OnEntitlementChecked(_ context.Context, _ entitlement.Request, decision entitlement.Decision) error {
	m.EntitlementChecks.Inc()
	if !decision.Allowed {
		m.EntitlementDenied.Inc()
	}
	return nil
}

// OnUpgradeTriggered implements plugin.OnUpgradeTriggered.
func (m *MetricsExtension) OnUpgradeTriggered(_ context.Context, _ *entitlement.Event) error {
	m.UpgradesTriggered.Inc()
	return nil
}

// OnUsageRecorded implements plugin.OnUsageRecorded.
func (m *MetricsExtension) OnUsageRecorded(_ context.Context, _, _, _ string, count int64) error {
	m.UsageIncrements.Inc()
	m.UsageCount.Observe(float64(count))
	return nil
}
