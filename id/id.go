// Package id defines TypeID-based identity types for all Cascade records.
//
// Every stored record in Cascade uses a single ID struct with a prefix that
// identifies the record type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for all Cascade record types.
const (
	PrefixTierDefinition Prefix = "tier" // Subscription tier definition
	PrefixTokenRecord    Prefix = "tok"  // Scoped design-token record
	PrefixFeatureLimit   Prefix = "flr"  // Feature/limit record per vertical+tier
	PrefixLimitRule      Prefix = "rule" // Freemium limit rule with upgrade copy
	PrefixUpgradeEvent   Prefix = "upg"  // Emitted upgrade-trigger event
)

// ID is the primary identifier type for all Cascade records.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "tok_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// TierDefinitionID is a type-safe identifier for tier definitions (prefix: "tier").
type TierDefinitionID = ID

// TokenRecordID is a type-safe identifier for token records (prefix: "tok").
type TokenRecordID = ID

// FeatureLimitID is a type-safe identifier for feature/limit records (prefix: "flr").
type FeatureLimitID = ID

// LimitRuleID is a type-safe identifier for limit rules (prefix: "rule").
type LimitRuleID = ID

// UpgradeEventID is a type-safe identifier for upgrade events (prefix: "upg").
type UpgradeEventID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewTierDefinitionID generates a new unique tier definition ID.
func NewTierDefinitionID() ID { return New(PrefixTierDefinition) }

// NewTokenRecordID generates a new unique token record ID.
func NewTokenRecordID() ID { return New(PrefixTokenRecord) }

// NewFeatureLimitID generates a new unique feature/limit record ID.
func NewFeatureLimitID() ID { return New(PrefixFeatureLimit) }

// NewLimitRuleID generates a new unique limit rule ID.
func NewLimitRuleID() ID { return New(PrefixLimitRule) }

// NewUpgradeEventID generates a new unique upgrade event ID.
func NewUpgradeEventID() ID { return New(PrefixUpgradeEvent) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseTierDefinitionID parses a string and validates the "tier" prefix.
func ParseTierDefinitionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTierDefinition) }

// ParseTokenRecordID parses a string and validates the "tok" prefix.
func ParseTokenRecordID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTokenRecord) }

// ParseFeatureLimitID parses a string and validates the "flr" prefix.
func ParseFeatureLimitID(s string) (ID, error) { return ParseWithPrefix(s, PrefixFeatureLimit) }

// ParseLimitRuleID parses a string and validates the "rule" prefix.
func ParseLimitRuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLimitRule) }

// ParseUpgradeEventID parses a string and validates the "upg" prefix.
func ParseUpgradeEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixUpgradeEvent) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
