// Package tier defines subscription tier definitions and the registry that
// normalizes arbitrary plan labels to canonical tier keys.
package tier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/types"
)

// ErrNotFound is returned when no tier claims a label. Callers must treat
// this as "assume lowest tier" only via an explicit ResolveOrLowest call;
// the registry itself never guesses.
var ErrNotFound = errors.New("tier: not found")

// Definition is one canonical subscription tier.
type Definition struct {
	types.Entity
	ID id.TierDefinitionID `json:"id"`

	// TierKey is the canonical, globally unique key (e.g. "starter").
	TierKey string `json:"tier_key"`

	// Aliases are the accepted labels for this tier, matched
	// case-insensitively. The tier key itself is always an implicit alias.
	Aliases []string `json:"aliases"`

	// HierarchyWeight orders tiers; higher weight means higher tier.
	HierarchyWeight int `json:"hierarchy_weight"`

	// StripePriceIDs are opaque provider identifiers, passed through untouched.
	StripePriceIDs []string `json:"stripe_price_ids,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store loads tier definitions from the backing repository.
type Store interface {
	LoadTierDefinitions(ctx context.Context) ([]*Definition, error)
}

// ConflictError reports a load-time conflict while building the registry.
// It is surfaced at admin-save time by validating layers and is never
// reachable at resolution time once the registry is built.
type ConflictError struct {
	Field string   // "alias", "tier_key", or "hierarchy_weight"
	Value string   // the conflicting value
	Tiers []string // tier keys involved
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tier: conflicting %s %q claimed by %s",
		e.Field, e.Value, strings.Join(e.Tiers, ", "))
}

// Normalize maps a raw plan label to its canonical lookup form:
// surrounding whitespace trimmed, lower-cased.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
