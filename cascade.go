package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cascade/cache"
	"github.com/xraph/cascade/entitlement"
	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/meter"
	"github.com/xraph/cascade/plugin"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/store"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
)

// DefaultCSSPrefix is the custom-property prefix used when none is
// configured.
const DefaultCSSPrefix = "ej"

// Engine is the main configuration and entitlement resolution engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	merger   *token.Merger
	resolver *feature.Resolver
	cache    *cache.Cache
	meter    *meter.Meter
	gate     *entitlement.Gate

	// Configuration
	cssPrefix   string
	useCache    bool
	autoMigrate bool

	mu      sync.RWMutex
	tiers   *tier.Registry
	started bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		plugins:   plugin.NewRegistry(),
		logger:    slog.Default(),
		cssPrefix:   DefaultCSSPrefix,
		useCache:    true,
		autoMigrate: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.merger = token.NewMerger(s,
		token.WithLogger(e.logger),
		token.WithSkipFunc(func(ctx context.Context, rec *token.Record, err error) {
			e.plugins.EmitRecordSkipped(ctx, rec, err.Error())
		}),
	)
	e.resolver = feature.NewResolver(s, feature.WithLogger(e.logger))
	e.meter = meter.New(s)

	var limits entitlement.LimitResolver = e.resolver
	if e.useCache {
		e.cache = cache.New(e.merger, e.resolver, s, s,
			cache.WithLogger(e.logger),
			cache.WithRevalidateFunc(func(ctx context.Context, kind cache.Kind, key string, hit bool) {
				e.plugins.EmitCacheRevalidated(ctx, string(kind), key, hit)
			}),
		)
		limits = e.cache
	}

	e.gate = entitlement.NewGate(limits, e.meter,
		entitlement.WithLogger(e.logger),
		entitlement.WithSink(entitlement.SinkFunc(func(ctx context.Context, event *entitlement.Event) {
			e.plugins.EmitUpgradeTriggered(ctx, event)
		})),
	)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCSSPrefix sets the custom-property prefix for CSSVariables.
func WithCSSPrefix(prefix string) Option {
	return func(e *Engine) {
		e.cssPrefix = prefix
	}
}

// WithoutResolutionCache disables the fingerprint-revalidated resolution
// cache; every resolution runs against the store.
func WithoutResolutionCache() Option {
	return func(e *Engine) {
		e.useCache = false
	}
}

// WithoutAutoMigrate skips the store migration during Start, for
// deployments that run migrations out of band. Start still loads the tier
// registry and verifies the platform layer.
func WithoutAutoMigrate() Option {
	return func(e *Engine) {
		e.autoMigrate = false
	}
}

// Start migrates the store (unless WithoutAutoMigrate), loads the tier
// registry, and verifies the platform base layer. It fails rather than
// serve from an unusable
// catalog: tier conflicts and an incomplete platform layer both refuse
// startup.
func (e *Engine) Start(ctx context.Context) error {
	if e.autoMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
	}

	registry, err := tier.Load(ctx, e.store)
	if err != nil {
		return err
	}

	if err := e.checkPlatformLayer(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.tiers = registry
	e.started = true
	e.mu.Unlock()

	e.plugins.EmitInit(ctx, e)
	e.plugins.EmitTierRegistryLoaded(ctx, registry)

	e.logger.Info("cascade engine started",
		"tiers", registry.Len(),
		"css_prefix", e.cssPrefix,
		"resolution_cache", e.useCache,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	e.mu.Lock()
	e.started = false
	e.mu.Unlock()

	return e.store.Close()
}

// Health reports whether the backing store is reachable.
func (e *Engine) Health(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Plugins returns the engine's plugin registry.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// checkPlatformLayer verifies that the active platform records cover every
// token category, so every cascade resolution has a complete floor to fall
// back to.
func (e *Engine) checkPlatformLayer(ctx context.Context) error {
	records, err := e.store.LoadActiveTokenRecords(ctx, scope.Platform())
	if err != nil {
		return err
	}

	covered := make(map[token.Category]bool)
	for _, rec := range records {
		values, err := rec.Decode()
		if err != nil {
			// Malformed platform records cannot contribute coverage.
			e.logger.Warn("skipping malformed platform record during startup check",
				"record_id", rec.ID.String(),
				"error", err,
			)
			continue
		}
		for cat, entries := range values {
			if len(entries) > 0 {
				covered[cat] = true
			}
		}
	}

	for _, cat := range token.Categories() {
		if !covered[cat] {
			return &ScopeNotFoundError{Category: cat}
		}
	}
	return nil
}

func (e *Engine) registry() (*tier.Registry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.started || e.tiers == nil {
		return nil, ErrNotStarted
	}
	return e.tiers, nil
}

// ──────────────────────────────────────────────────
// Tier Normalization
// ──────────────────────────────────────────────────

// NormalizeTier resolves an arbitrary plan label to its canonical tier key.
func (e *Engine) NormalizeTier(rawLabel string) (string, error) {
	registry, err := e.registry()
	if err != nil {
		return "", err
	}
	return registry.Resolve(rawLabel)
}

// NormalizeTierOrLowest resolves a label, mapping unknown labels to the
// lowest tier. This is the explicit opt-in for callers that prefer a safe
// default over an error.
func (e *Engine) NormalizeTierOrLowest(rawLabel string) (string, error) {
	registry, err := e.registry()
	if err != nil {
		return "", err
	}
	return registry.ResolveOrLowest(rawLabel), nil
}

// TierRegistry returns the current tier registry.
func (e *Engine) TierRegistry() (*tier.Registry, error) {
	return e.registry()
}

// ReloadTiers rebuilds the tier registry from the store. The previous
// registry stays in service if the new catalog fails validation.
func (e *Engine) ReloadTiers(ctx context.Context) error {
	registry, err := tier.Load(ctx, e.store)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.tiers = registry
	e.mu.Unlock()

	e.plugins.EmitTierRegistryLoaded(ctx, registry)
	return nil
}

// ──────────────────────────────────────────────────
// Token Resolution
// ──────────────────────────────────────────────────

// ResolveTokens computes the effective token set for a tenant context.
// The context's tier key may be any accepted alias; it is normalized
// before the cascade runs.
func (e *Engine) ResolveTokens(ctx context.Context, sctx scope.Context) (*token.Set, error) {
	normalized, err := e.normalizeContext(sctx)
	if err != nil {
		return nil, err
	}

	var set *token.Set
	if e.cache != nil {
		set, err = e.cache.ResolveTokens(ctx, normalized)
	} else {
		set, err = e.merger.Resolve(ctx, normalized)
	}
	if err != nil {
		return nil, err
	}

	e.plugins.EmitTokensResolved(ctx, normalized, set)
	return set, nil
}

// CSSVariables resolves the token set for a context and renders it as CSS
// custom properties using the configured prefix.
func (e *Engine) CSSVariables(ctx context.Context, sctx scope.Context) ([]token.CSSVariable, error) {
	set, err := e.ResolveTokens(ctx, sctx)
	if err != nil {
		return nil, err
	}
	return set.CSSVariables(e.cssPrefix), nil
}

func (e *Engine) normalizeContext(sctx scope.Context) (scope.Context, error) {
	if sctx.TierKey == "" {
		return sctx, nil
	}
	tierKey, err := e.NormalizeTier(sctx.TierKey)
	if err != nil {
		return scope.Context{}, err
	}
	sctx.TierKey = tierKey
	return sctx, nil
}

// ──────────────────────────────────────────────────
// Entitlements
// ──────────────────────────────────────────────────

// ResolveEntitlements returns the feature set and limits for a vertical
// and plan label. The label is normalized before resolution.
func (e *Engine) ResolveEntitlements(ctx context.Context, verticalID, tierLabel string) (*feature.Entitlements, error) {
	tierKey, err := e.NormalizeTier(tierLabel)
	if err != nil {
		return nil, err
	}

	var ents *feature.Entitlements
	if e.cache != nil {
		ents, err = e.cache.Resolve(ctx, verticalID, tierKey)
	} else {
		ents, err = e.resolver.Resolve(ctx, verticalID, tierKey)
	}
	if err != nil {
		return nil, err
	}

	e.plugins.EmitEntitlementsResolved(ctx, ents)
	return ents, nil
}

// Authorize checks and consumes one unit of a metered feature. The
// request's tier key may be any accepted alias; an empty PeriodID defaults
// to the current month.
func (e *Engine) Authorize(ctx context.Context, req entitlement.Request) (entitlement.Decision, error) {
	tierKey, err := e.NormalizeTier(req.TierKey)
	if err != nil {
		return entitlement.Decision{}, err
	}
	req.TierKey = tierKey

	if req.PeriodID == "" {
		req.PeriodID = meter.MonthlyPeriod(time.Now().UTC())
	}

	decision, err := e.gate.Authorize(ctx, req)
	if err != nil {
		return entitlement.Decision{}, err
	}

	e.plugins.EmitEntitlementChecked(ctx, req, decision)
	if decision.Allowed && !decision.Unlimited {
		e.plugins.EmitUsageRecorded(ctx, req.TenantID, req.FeatureKey, req.PeriodID, decision.Used)
	}

	return decision, nil
}

// RemainingQuota returns the quota left for a feature without consuming
// any of it.
func (e *Engine) RemainingQuota(ctx context.Context, req entitlement.Request) (int64, error) {
	tierKey, err := e.NormalizeTier(req.TierKey)
	if err != nil {
		return 0, err
	}
	req.TierKey = tierKey

	if req.PeriodID == "" {
		req.PeriodID = meter.MonthlyPeriod(time.Now().UTC())
	}

	return e.gate.Remaining(ctx, req)
}

// Usage returns the consumed count for a (tenant, feature, period) key.
func (e *Engine) Usage(ctx context.Context, tenantID, featureKey, periodID string) (int64, error) {
	return e.meter.Peek(ctx, tenantID, featureKey, periodID)
}

// RecordUsage adds delta units to a usage counter outside the authorization
// path, for backfills and batch imports.
func (e *Engine) RecordUsage(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error) {
	count, err := e.meter.Add(ctx, tenantID, featureKey, periodID, delta)
	if err != nil {
		return 0, err
	}
	e.plugins.EmitUsageRecorded(ctx, tenantID, featureKey, periodID, count)
	return count, nil
}

// ──────────────────────────────────────────────────
// Admin Writes
// ──────────────────────────────────────────────────

// SaveTierDefinitions replaces the tier catalog and reloads the registry.
// Conflicting catalogs are rejected before anything is written.
func (e *Engine) SaveTierDefinitions(ctx context.Context, defs []*tier.Definition) error {
	if _, err := tier.NewRegistry(defs); err != nil {
		return err
	}
	if err := e.store.SaveTierDefinitions(ctx, defs); err != nil {
		return err
	}
	return e.ReloadTiers(ctx)
}

// SaveTokenRecord validates and persists a token record. The payload must
// decode against the category schema; malformed payloads are rejected at
// write time instead of being skipped at read time.
func (e *Engine) SaveTokenRecord(ctx context.Context, rec *token.Record) error {
	if rec == nil {
		return ErrInvalidInput
	}
	if err := rec.Scope.Validate(); err != nil {
		return err
	}
	if _, err := rec.Decode(); err != nil {
		return err
	}

	if rec.ID.IsNil() {
		rec.ID = id.NewTokenRecordID()
	}
	rec.ChangedAt = time.Now().UTC()
	rec.Touch()
	return e.store.SaveTokenRecord(ctx, rec)
}

// DeleteTokenRecord removes a token record.
func (e *Engine) DeleteTokenRecord(ctx context.Context, recID id.TokenRecordID) error {
	return e.store.DeleteTokenRecord(ctx, recID)
}

// SaveFeatureLimitRecord persists the feature catalog entry for a
// (vertical, tier) pair.
func (e *Engine) SaveFeatureLimitRecord(ctx context.Context, rec *feature.LimitRecord) error {
	if rec == nil || rec.TierKey == "" {
		return ErrInvalidInput
	}

	if rec.ID.IsNil() {
		rec.ID = id.NewFeatureLimitID()
	}
	rec.ChangedAt = time.Now().UTC()
	rec.Touch()
	return e.store.SaveFeatureLimitRecord(ctx, rec)
}

// SaveLimitRule persists an upgrade-offer rule.
func (e *Engine) SaveLimitRule(ctx context.Context, rule *feature.LimitRule) error {
	if rule == nil || rule.TierKey == "" || rule.FeatureKey == "" {
		return ErrInvalidInput
	}
	if rule.ID.IsNil() {
		rule.ID = id.NewLimitRuleID()
	}
	return e.store.SaveLimitRule(ctx, rule)
}
