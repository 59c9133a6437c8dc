package tier

import (
	"context"
	"fmt"
	"sort"
)

// Registry holds the canonical tier table with a flattened alias index.
// It is immutable once built; rebuild it when tier definitions change.
type Registry struct {
	byKey   map[string]*Definition
	aliases map[string]string // normalized alias -> tier key
	ordered []*Definition     // ascending hierarchy weight
}

// NewRegistry builds a registry from tier definitions, validating the alias
// table. It fails fast with a *ConflictError if two tiers claim the same
// alias, tier key, or hierarchy weight.
func NewRegistry(defs []*Definition) (*Registry, error) {
	r := &Registry{
		byKey:   make(map[string]*Definition, len(defs)),
		aliases: make(map[string]string, len(defs)*2),
		ordered: make([]*Definition, 0, len(defs)),
	}

	weights := make(map[int]string, len(defs))

	for _, def := range defs {
		key := Normalize(def.TierKey)
		if key == "" {
			return nil, fmt.Errorf("tier: definition %s has empty tier_key", def.ID)
		}
		if _, exists := r.byKey[key]; exists {
			return nil, &ConflictError{Field: "tier_key", Value: key, Tiers: []string{key, key}}
		}
		if other, exists := weights[def.HierarchyWeight]; exists {
			return nil, &ConflictError{
				Field: "hierarchy_weight",
				Value: fmt.Sprintf("%d", def.HierarchyWeight),
				Tiers: []string{other, key},
			}
		}

		r.byKey[key] = def
		weights[def.HierarchyWeight] = key
		r.ordered = append(r.ordered, def)

		// The tier key is always a self-alias so Resolve(tier_key) == tier_key.
		labels := append([]string{def.TierKey}, def.Aliases...)
		for _, raw := range labels {
			alias := Normalize(raw)
			if alias == "" {
				continue
			}
			if owner, exists := r.aliases[alias]; exists {
				if owner == key {
					continue
				}
				return nil, &ConflictError{Field: "alias", Value: alias, Tiers: []string{owner, key}}
			}
			r.aliases[alias] = key
		}
	}

	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].HierarchyWeight < r.ordered[j].HierarchyWeight
	})

	return r, nil
}

// Load reads tier definitions from the store and builds a registry.
func Load(ctx context.Context, st Store) (*Registry, error) {
	defs, err := st.LoadTierDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs)
}

// Resolve maps an arbitrary incoming plan label to its canonical tier key.
// Returns ErrNotFound (wrapped) if no tier claims the label.
func (r *Registry) Resolve(rawLabel string) (string, error) {
	alias := Normalize(rawLabel)
	if key, ok := r.aliases[alias]; ok {
		return key, nil
	}
	return "", fmt.Errorf("tier: resolve %q: %w", rawLabel, ErrNotFound)
}

// ResolveOrLowest maps a label to its canonical tier key, falling back to
// the lowest tier for unclaimed labels. This is the explicit opt-in for
// callers that want "unknown plan means free tier" semantics.
func (r *Registry) ResolveOrLowest(rawLabel string) string {
	if key, err := r.Resolve(rawLabel); err == nil {
		return key
	}
	if lowest := r.Lowest(); lowest != nil {
		return lowest.TierKey
	}
	return ""
}

// Definition returns the definition for a canonical tier key, or nil.
func (r *Registry) Definition(tierKey string) *Definition {
	return r.byKey[Normalize(tierKey)]
}

// Weight returns the hierarchy weight for a canonical tier key.
func (r *Registry) Weight(tierKey string) (int, bool) {
	def := r.Definition(tierKey)
	if def == nil {
		return 0, false
	}
	return def.HierarchyWeight, true
}

// Compare orders two canonical tier keys by hierarchy weight. It returns a
// negative value when a ranks below b, zero when equal or either is unknown.
func (r *Registry) Compare(a, b string) int {
	wa, oka := r.Weight(a)
	wb, okb := r.Weight(b)
	if !oka || !okb {
		return 0
	}
	return wa - wb
}

// Lowest returns the definition with the smallest hierarchy weight, or nil
// for an empty registry.
func (r *Registry) Lowest() *Definition {
	if len(r.ordered) == 0 {
		return nil
	}
	return r.ordered[0]
}

// Definitions returns all definitions in ascending hierarchy-weight order.
// The same ordering serves admin list displays.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered tiers.
func (r *Registry) Len() int {
	return len(r.byKey)
}
