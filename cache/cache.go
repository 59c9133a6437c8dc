// Package cache provides a fingerprint-revalidated cache over token and
// entitlement resolution. Every hit is revalidated against the store with a
// metadata-only query before the cached value is served, so the cache never
// returns a resolution built from stale record revisions. It trades the cost
// of the full load (reading and decoding every payload) for a cheap
// (id, changed_at) scan; it is not a TTL cache and needs no invalidation
// calls on writes.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/token"
)

// Kind names a cached resolution family.
type Kind string

const (
	KindTokens       Kind = "tokens"
	KindEntitlements Kind = "entitlements"
)

// RevalidateFunc is invoked after every cache lookup with the outcome. hit
// is true when the fingerprint matched and the cached value was served.
type RevalidateFunc func(ctx context.Context, kind Kind, key string, hit bool)

// Cache wraps a token merger and a feature resolver with revalidated
// memoization. It is safe for concurrent use.
type Cache struct {
	merger   *token.Merger
	resolver *feature.Resolver

	tokenStore   token.Store
	featureStore feature.Store

	logger       *slog.Logger
	onRevalidate RevalidateFunc

	mu       sync.RWMutex
	tokens   map[string]tokenEntry
	features map[string]featureEntry
}

type tokenEntry struct {
	fingerprint uint64
	set         *token.Set
}

type featureEntry struct {
	fingerprint uint64
	ents        *feature.Entitlements
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithRevalidateFunc installs a callback observing lookup outcomes.
func WithRevalidateFunc(fn RevalidateFunc) Option {
	return func(c *Cache) {
		c.onRevalidate = fn
	}
}

// New creates a cache over the given merger and resolver. The stores must
// be the ones backing them; the cache uses them for the metadata-only
// revalidation queries.
func New(merger *token.Merger, resolver *feature.Resolver, ts token.Store, fs feature.Store, opts ...Option) *Cache {
	c := &Cache{
		merger:       merger,
		resolver:     resolver,
		tokenStore:   ts,
		featureStore: fs,
		logger:       slog.Default(),
		tokens:       make(map[string]tokenEntry),
		features:     make(map[string]featureEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveTokens returns the effective token set for a context, serving the
// cached set when the contributing record revisions are unchanged.
//
// A revalidation failure is treated as a miss: the full resolution runs and
// surfaces the store error itself if the store is down.
func (c *Cache) ResolveTokens(ctx context.Context, sctx scope.Context) (*token.Set, error) {
	key := cacheKey(sctx.VerticalID, sctx.TierKey, sctx.TenantID)

	c.mu.RLock()
	entry, ok := c.tokens[key]
	c.mu.RUnlock()

	if ok {
		metas, err := c.tokenStore.LoadTokenRecordMeta(ctx, sctx.Chain())
		if err == nil && Fingerprint(metas) == entry.fingerprint {
			c.observe(ctx, KindTokens, key, true)
			return entry.set, nil
		}
		if err != nil {
			c.logger.Debug("token cache revalidation failed; recomputing",
				"scope_context", sctx.String(),
				"error", err,
			)
		}
	}

	set, metas, err := c.merger.ResolveWithMeta(ctx, sctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tokens[key] = tokenEntry{fingerprint: Fingerprint(metas), set: set}
	c.mu.Unlock()

	c.observe(ctx, KindTokens, key, false)
	return set, nil
}

// Resolve returns the entitlements for a (vertical, tier) pair, serving the
// cached value when the contributing record revisions are unchanged. The
// fingerprint covers the DefaultVertical fallback record too, so creating
// an exact record invalidates a cached fallback resolution.
func (c *Cache) Resolve(ctx context.Context, verticalID, tierKey string) (*feature.Entitlements, error) {
	key := cacheKey(verticalID, tierKey)

	c.mu.RLock()
	entry, ok := c.features[key]
	c.mu.RUnlock()

	if ok {
		metas, err := c.featureStore.LoadFeatureLimitMeta(ctx, verticalID, tierKey)
		if err == nil && Fingerprint(metas) == entry.fingerprint {
			c.observe(ctx, KindEntitlements, key, true)
			return entry.ents, nil
		}
		if err != nil {
			c.logger.Debug("entitlement cache revalidation failed; recomputing",
				"vertical_id", verticalID,
				"tier_key", tierKey,
				"error", err,
			)
		}
	}

	ents, metas, err := c.resolver.ResolveWithMeta(ctx, verticalID, tierKey)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.features[key] = featureEntry{fingerprint: Fingerprint(metas), ents: ents}
	c.mu.Unlock()

	c.observe(ctx, KindEntitlements, key, false)
	return ents, nil
}

// Rule passes through to the resolver. Rules are consulted only when a
// request is already blocked, so caching them buys nothing.
func (c *Cache) Rule(ctx context.Context, verticalID, tierKey, featureKey string) (*feature.LimitRule, error) {
	return c.resolver.Rule(ctx, verticalID, tierKey, featureKey)
}

// Invalidate drops every cached resolution. It is never required for
// correctness; revalidation already catches changed records.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.tokens = make(map[string]tokenEntry)
	c.features = make(map[string]featureEntry)
	c.mu.Unlock()
}

func (c *Cache) observe(ctx context.Context, kind Kind, key string, hit bool) {
	if c.onRevalidate != nil {
		c.onRevalidate(ctx, kind, key, hit)
	}
}

// cacheKey joins id segments with NUL so ids containing separator
// characters cannot alias two contexts to one slot.
func cacheKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}
