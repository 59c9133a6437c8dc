package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/cascade/entitlement"
	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onTierRegistryLoaded   []OnTierRegistryLoaded
	onTokensResolved       []OnTokensResolved
	onEntitlementsResolved []OnEntitlementsResolved
	onRecordSkipped        []OnRecordSkipped
	onCacheRevalidated     []OnCacheRevalidated
	onEntitlementChecked   []OnEntitlementChecked
	onUpgradeTriggered     []OnUpgradeTriggered
	onUsageRecorded        []OnUsageRecorded
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnTierRegistryLoaded); ok {
		r.onTierRegistryLoaded = append(r.onTierRegistryLoaded, v)
	}
	if v, ok := p.(OnTokensResolved); ok {
		r.onTokensResolved = append(r.onTokensResolved, v)
	}
	if v, ok := p.(OnEntitlementsResolved); ok {
		r.onEntitlementsResolved = append(r.onEntitlementsResolved, v)
	}
	if v, ok := p.(OnRecordSkipped); ok {
		r.onRecordSkipped = append(r.onRecordSkipped, v)
	}
	if v, ok := p.(OnCacheRevalidated); ok {
		r.onCacheRevalidated = append(r.onCacheRevalidated, v)
	}
	if v, ok := p.(OnEntitlementChecked); ok {
		r.onEntitlementChecked = append(r.onEntitlementChecked, v)
	}
	if v, ok := p.(OnUpgradeTriggered); ok {
		r.onUpgradeTriggered = append(r.onUpgradeTriggered, v)
	}
	if v, ok := p.(OnUsageRecorded); ok {
		r.onUsageRecorded = append(r.onUsageRecorded, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnTierRegistryLoaded)(nil)).Elem(), "OnTierRegistryLoaded")
	checkInterface(reflect.TypeOf((*OnTokensResolved)(nil)).Elem(), "OnTokensResolved")
	checkInterface(reflect.TypeOf((*OnEntitlementsResolved)(nil)).Elem(), "OnEntitlementsResolved")
	checkInterface(reflect.TypeOf((*OnRecordSkipped)(nil)).Elem(), "OnRecordSkipped")
	checkInterface(reflect.TypeOf((*OnCacheRevalidated)(nil)).Elem(), "OnCacheRevalidated")
	checkInterface(reflect.TypeOf((*OnEntitlementChecked)(nil)).Elem(), "OnEntitlementChecked")
	checkInterface(reflect.TypeOf((*OnUpgradeTriggered)(nil)).Elem(), "OnUpgradeTriggered")
	checkInterface(reflect.TypeOf((*OnUsageRecorded)(nil)).Elem(), "OnUsageRecorded")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierRegistryLoaded emits a registry loaded event.
func (r *Registry) EmitTierRegistryLoaded(ctx context.Context, registry *tier.Registry) {
	r.mu.RLock()
	plugins := r.onTierRegistryLoaded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierRegistryLoaded(ctx, registry)
		}); err != nil {
			r.logger.Warn("plugin OnTierRegistryLoaded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTokensResolved emits a token resolution event.
func (r *Registry) EmitTokensResolved(ctx context.Context, sctx scope.Context, set *token.Set) {
	r.mu.RLock()
	plugins := r.onTokensResolved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTokensResolved(ctx, sctx, set)
		}); err != nil {
			r.logger.Warn("plugin OnTokensResolved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntitlementsResolved emits an entitlement resolution event.
func (r *Registry) EmitEntitlementsResolved(ctx context.Context, ents *feature.Entitlements) {
	r.mu.RLock()
	plugins := r.onEntitlementsResolved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementsResolved(ctx, ents)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementsResolved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRecordSkipped emits a malformed-record skip event.
func (r *Registry) EmitRecordSkipped(ctx context.Context, rec *token.Record, reason string) {
	r.mu.RLock()
	plugins := r.onRecordSkipped
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRecordSkipped(ctx, rec, reason)
		}); err != nil {
			r.logger.Warn("plugin OnRecordSkipped failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCacheRevalidated emits a cache lookup outcome event.
func (r *Registry) EmitCacheRevalidated(ctx context.Context, kind, key string, hit bool) {
	r.mu.RLock()
	plugins := r.onCacheRevalidated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCacheRevalidated(ctx, kind, key, hit)
		}); err != nil {
			r.logger.Warn("plugin OnCacheRevalidated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntitlementChecked emits an entitlement checked event.
func (r *Registry) EmitEntitlementChecked(ctx context.Context, req entitlement.Request, decision entitlement.Decision) {
	r.mu.RLock()
	plugins := r.onEntitlementChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementChecked(ctx, req, decision)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUpgradeTriggered emits an upgrade trigger event.
func (r *Registry) EmitUpgradeTriggered(ctx context.Context, event *entitlement.Event) {
	r.mu.RLock()
	plugins := r.onUpgradeTriggered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUpgradeTriggered(ctx, event)
		}); err != nil {
			r.logger.Warn("plugin OnUpgradeTriggered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUsageRecorded emits a usage recorded event.
func (r *Registry) EmitUsageRecorded(ctx context.Context, tenantID, featureKey, periodID string, count int64) {
	r.mu.RLock()
	plugins := r.onUsageRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageRecorded(ctx, tenantID, featureKey, periodID, count)
		}); err != nil {
			r.logger.Warn("plugin OnUsageRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the resolution pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
