// Package scope defines the four-level specificity hierarchy used to resolve
// effective configuration from layered overrides.
//
// A Key is a tagged union over the four cascade levels. Specificity is
// totally ordered: platform < vertical < plan < tenant. The single Key type
// replaces the parallel ad hoc lookup paths (per-entity scope fields) that
// multi-tenant config stores tend to grow.
package scope

import "fmt"

// Level is one of the four cascade levels.
type Level string

// Cascade levels, least to most specific.
const (
	LevelPlatform Level = "platform"
	LevelVertical Level = "vertical"
	LevelPlan     Level = "plan"
	LevelTenant   Level = "tenant"
)

// Rank returns the specificity rank of the level, starting at 0 for
// platform. Unknown levels rank below platform so they never win a cascade.
func (l Level) Rank() int {
	switch l {
	case LevelPlatform:
		return 0
	case LevelVertical:
		return 1
	case LevelPlan:
		return 2
	case LevelTenant:
		return 3
	default:
		return -1
	}
}

// Valid reports whether the level is one of the four cascade levels.
func (l Level) Valid() bool {
	return l.Rank() >= 0
}

// Key identifies one scope in the cascade. Exactly one of the discriminating
// fields is set, matching the level: VerticalID for vertical, PlanTier for
// plan, TenantID for tenant. Platform keys carry no discriminator.
type Key struct {
	Level      Level  `json:"level"`
	VerticalID string `json:"vertical_id,omitempty"`
	PlanTier   string `json:"plan_tier,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
}

// Platform returns the single platform-level key.
func Platform() Key {
	return Key{Level: LevelPlatform}
}

// Vertical returns the key for a vertical's scope.
func Vertical(verticalID string) Key {
	return Key{Level: LevelVertical, VerticalID: verticalID}
}

// Plan returns the key for a plan tier's scope.
func Plan(tierKey string) Key {
	return Key{Level: LevelPlan, PlanTier: tierKey}
}

// Tenant returns the key for a tenant's scope.
func Tenant(tenantID string) Key {
	return Key{Level: LevelTenant, TenantID: tenantID}
}

// Validate checks that the key's discriminator matches its level.
func (k Key) Validate() error {
	switch k.Level {
	case LevelPlatform:
		if k.VerticalID != "" || k.PlanTier != "" || k.TenantID != "" {
			return fmt.Errorf("scope: platform key must carry no discriminator")
		}
	case LevelVertical:
		if k.VerticalID == "" {
			return fmt.Errorf("scope: vertical key requires vertical_id")
		}
	case LevelPlan:
		if k.PlanTier == "" {
			return fmt.Errorf("scope: plan key requires plan_tier")
		}
	case LevelTenant:
		if k.TenantID == "" {
			return fmt.Errorf("scope: tenant key requires tenant_id")
		}
	default:
		return fmt.Errorf("scope: unknown level %q", k.Level)
	}
	return nil
}

// Rank returns the specificity rank of the key's level.
func (k Key) Rank() int {
	return k.Level.Rank()
}

// MoreSpecificThan reports whether k outranks other in the cascade.
func (k Key) MoreSpecificThan(other Key) bool {
	return k.Rank() > other.Rank()
}

// String renders the key as "level" or "level:discriminator".
func (k Key) String() string {
	switch k.Level {
	case LevelVertical:
		return string(k.Level) + ":" + k.VerticalID
	case LevelPlan:
		return string(k.Level) + ":" + k.PlanTier
	case LevelTenant:
		return string(k.Level) + ":" + k.TenantID
	default:
		return string(k.Level)
	}
}

// Context identifies the tenant context a resolution runs for.
type Context struct {
	VerticalID string `json:"vertical_id"`
	TierKey    string `json:"tier_key"`
	TenantID   string `json:"tenant_id"`
}

// Chain returns the scope keys contributing to this context's cascade, in
// increasing specificity. Platform is always present; vertical, plan and
// tenant keys are included only when the context names them.
func (c Context) Chain() []Key {
	chain := make([]Key, 0, 4)
	chain = append(chain, Platform())
	if c.VerticalID != "" {
		chain = append(chain, Vertical(c.VerticalID))
	}
	if c.TierKey != "" {
		chain = append(chain, Plan(c.TierKey))
	}
	if c.TenantID != "" {
		chain = append(chain, Tenant(c.TenantID))
	}
	return chain
}

// String renders the context for logging and cache keys.
func (c Context) String() string {
	return fmt.Sprintf("%s/%s/%s", c.VerticalID, c.TierKey, c.TenantID)
}
