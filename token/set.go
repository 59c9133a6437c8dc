package token

import (
	"fmt"
	"sort"
)

// Set is the resolved, effective token map for a tenant context: a flat map
// of "category.key" to string value. Sets are immutable value objects, safe
// to share across goroutines without locking once constructed.
type Set struct {
	values map[string]string
}

// FlatKey joins a category and token key into the flat "category.key" form.
func FlatKey(cat Category, key string) string {
	return string(cat) + "." + key
}

func newSet(values map[string]string) *Set {
	return &Set{values: values}
}

// Value returns the value for a flat "category.key" lookup.
func (s *Set) Value(flatKey string) (string, bool) {
	v, ok := s.values[flatKey]
	return v, ok
}

// Get returns the value for a category and token key.
func (s *Set) Get(cat Category, key string) (string, bool) {
	return s.Value(FlatKey(cat, key))
}

// Len returns the number of resolved tokens.
func (s *Set) Len() int {
	return len(s.values)
}

// Keys returns all flat keys in sorted order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten returns a copy of the flat token map.
func (s *Set) Flatten() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// CSSVariable is one CSS custom property derived from a resolved token.
type CSSVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CSSVariables renders the set as CSS custom properties in sorted order,
// named "--<prefix>-<category>-<key>". Rendering (injection into a
// stylesheet) is the consumer's responsibility.
func (s *Set) CSSVariables(prefix string) []CSSVariable {
	vars := make([]CSSVariable, 0, len(s.values))
	for _, flat := range s.Keys() {
		cat, key := splitFlatKey(flat)
		vars = append(vars, CSSVariable{
			Name:  fmt.Sprintf("--%s-%s-%s", prefix, cat, key),
			Value: s.values[flat],
		})
	}

	return vars
}

func splitFlatKey(flat string) (Category, string) {
	for i := 0; i < len(flat); i++ {
		if flat[i] == '.' {
			return Category(flat[:i]), flat[i+1:]
		}
	}
	return Category(flat), ""
}
