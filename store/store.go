// Package store defines the unified storage interface for Cascade and the
// shared helpers its backends use.
package store

import (
	"context"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
	"github.com/xraph/cascade/types"
)

// Store is the unified storage interface for all Cascade entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// The Load* methods satisfy the narrow per-package interfaces
// (tier.Store, token.Store, feature.Store, meter.CounterStore), so a Store
// plugs directly into the resolution components.
type Store interface {
	// Tier methods
	LoadTierDefinitions(ctx context.Context) ([]*tier.Definition, error)
	SaveTierDefinitions(ctx context.Context, defs []*tier.Definition) error

	// Token record methods
	LoadActiveTokenRecords(ctx context.Context, key scope.Key) ([]*token.Record, error)
	LoadTokenRecordMeta(ctx context.Context, keys []scope.Key) ([]types.RecordMeta, error)
	SaveTokenRecord(ctx context.Context, rec *token.Record) error
	DeleteTokenRecord(ctx context.Context, recID id.TokenRecordID) error

	// Feature limit methods
	LoadFeatureLimitRecord(ctx context.Context, verticalID, tierKey string) (*feature.LimitRecord, error)
	LoadFeatureLimitMeta(ctx context.Context, verticalID, tierKey string) ([]types.RecordMeta, error)
	SaveFeatureLimitRecord(ctx context.Context, rec *feature.LimitRecord) error

	// Limit rule methods
	LoadLimitRule(ctx context.Context, verticalID, tierKey, featureKey string) (*feature.LimitRule, error)
	SaveLimitRule(ctx context.Context, rule *feature.LimitRule) error

	// Usage counter methods. IncrementUsage must be linearizable per
	// (tenant, feature, period) key: concurrent callers each observe a
	// distinct post-increment count.
	IncrementUsage(ctx context.Context, tenantID, featureKey, periodID string, delta int64) (int64, error)
	PeekUsage(ctx context.Context, tenantID, featureKey, periodID string) (int64, error)

	// Lifecycle methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
