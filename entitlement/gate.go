package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cascade/feature"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/meter"
)

// LimitResolver resolves entitlements and limit rules. *feature.Resolver
// and the resolution cache both satisfy it.
type LimitResolver interface {
	Resolve(ctx context.Context, verticalID, tierKey string) (*feature.Entitlements, error)
	Rule(ctx context.Context, verticalID, tierKey, featureKey string) (*feature.LimitRule, error)
}

// Gate authorizes feature use against resolved limits and metered usage.
type Gate struct {
	resolver LimitResolver
	meter    *meter.Meter
	logger   *slog.Logger
	sink     Sink
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithSink sets the upgrade-event sink.
func WithSink(s Sink) GateOption {
	return func(g *Gate) {
		g.sink = s
	}
}

// NewGate creates an entitlement gate.
func NewGate(resolver LimitResolver, m *meter.Meter, opts ...GateOption) *Gate {
	g := &Gate{
		resolver: resolver,
		meter:    m,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides whether the tenant may use the feature in the period.
//
// Branches on the resolved limit:
//
//   - 0 (or absent): Blocked immediately, no counter touched.
//   - -1: unlimited; the counter is incremented for analytics best-effort
//     (a counter-store failure never blocks the caller) and the decision is
//     Allowed with Remaining = -1.
//   - n > 0: a single atomic increment; if the resulting count exceeds n,
//     the call that pushed it over is the one blocked. The counter is not
//     rolled back — under concurrency the cap can be overshot by at most
//     one unit per concurrent caller, which is the documented trade against
//     pessimistic per-key locking for what is a billing nudge, not a
//     security boundary.
//
// Repository and counter-store failures (other than the unlimited-analytics
// path) surface to the caller verbatim; retry policy belongs to the caller.
func (g *Gate) Authorize(ctx context.Context, req Request) (Decision, error) {
	if req.TenantID == "" || req.FeatureKey == "" || req.PeriodID == "" {
		return Decision{}, fmt.Errorf("entitlement: request requires tenant_id, feature_key and period_id")
	}

	ents, err := g.resolver.Resolve(ctx, req.VerticalID, req.TierKey)
	if err != nil {
		return Decision{}, err
	}

	limit := ents.LimitFor(req.FeatureKey)

	switch {
	case limit == feature.Disabled:
		return g.blocked(ctx, req, limit, ReasonFeatureDisabled, false, 0)

	case limit == feature.Unlimited:
		if _, err := g.meter.Increment(ctx, req.TenantID, req.FeatureKey, req.PeriodID); err != nil {
			g.logger.Warn("analytics increment failed for unlimited feature",
				"tenant_id", req.TenantID,
				"feature_key", req.FeatureKey,
				"error", err,
			)
		}
		return Decision{
			Allowed:   true,
			Remaining: feature.Unlimited,
			Unlimited: true,
			Limit:     feature.Unlimited,
		}, nil

	default:
		count, err := g.meter.Increment(ctx, req.TenantID, req.FeatureKey, req.PeriodID)
		if err != nil {
			return Decision{}, err
		}

		if count > limit {
			return g.blocked(ctx, req, limit, ReasonLimitExceeded, true, count)
		}

		return Decision{
			Allowed:   true,
			Remaining: limit - count,
			Limit:     limit,
			Used:      count,
		}, nil
	}
}

// Remaining returns the quota left for a feature in the period without
// consuming any of it.
func (g *Gate) Remaining(ctx context.Context, req Request) (int64, error) {
	ents, err := g.resolver.Resolve(ctx, req.VerticalID, req.TierKey)
	if err != nil {
		return 0, err
	}

	limit := ents.LimitFor(req.FeatureKey)
	if limit == feature.Unlimited {
		return feature.Unlimited, nil
	}
	if limit == feature.Disabled {
		return 0, nil
	}

	count, err := g.meter.Peek(ctx, req.TenantID, req.FeatureKey, req.PeriodID)
	if err != nil {
		return 0, err
	}
	if count >= limit {
		return 0, nil
	}
	return limit - count, nil
}

// blocked builds a Blocked decision, attaching the resolved upgrade offer
// when a limit rule exists. used carries the post-increment counter value
// the block was decided on (zero for disabled features, where no counter is
// read). The upgrade event is emitted only for positive-limit exhaustion,
// never for disabled features.
func (g *Gate) blocked(ctx context.Context, req Request, limit int64, reason Reason, emit bool, used int64) (Decision, error) {
	decision := Decision{
		Allowed: false,
		Limit:   limit,
		Used:    used,
		Reason:  reason,
	}

	rule, err := g.resolver.Rule(ctx, req.VerticalID, req.TierKey, req.FeatureKey)
	if err != nil {
		// The block stands on the resolved limit alone; a rule lookup
		// failure only costs the upgrade copy.
		g.logger.Warn("limit rule lookup failed",
			"vertical_id", req.VerticalID,
			"tier_key", req.TierKey,
			"feature_key", req.FeatureKey,
			"error", err,
		)
		rule = nil
	}

	if rule != nil {
		decision.Upgrade = &Upgrade{
			Message:            rule.RenderMessage(req.VerticalID, req.TierKey, limit),
			ExpectedConversion: rule.ExpectedConversion,
		}
	}

	if emit && g.sink != nil {
		event := &Event{
			ID:         id.NewUpgradeEventID(),
			TenantID:   req.TenantID,
			VerticalID: req.VerticalID,
			TierKey:    req.TierKey,
			FeatureKey: req.FeatureKey,
			PeriodID:   req.PeriodID,
			Limit:      limit,
			OccurredAt: time.Now().UTC(),
		}
		if decision.Upgrade != nil {
			event.Message = decision.Upgrade.Message
			event.ExpectedConversion = decision.Upgrade.ExpectedConversion
		}
		g.sink.UpgradeTriggered(ctx, event)
	}

	return decision, nil
}
