// Package token implements scoped design-token records and the cascade
// merger that resolves them into an effective token set per tenant context.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/scope"
	"github.com/xraph/cascade/types"
)

// Category is one of the fixed token categories. Token payloads are
// fixed-shape records per category, not arbitrary JSON.
type Category string

// Token categories.
const (
	CategoryColor            Category = "color"
	CategoryTypography       Category = "typography"
	CategorySpacing          Category = "spacing"
	CategoryEffect           Category = "effect"
	CategoryComponentVariant Category = "component_variant"
)

// Categories returns all token categories in stable order.
func Categories() []Category {
	return []Category{
		CategoryColor,
		CategoryTypography,
		CategorySpacing,
		CategoryEffect,
		CategoryComponentVariant,
	}
}

// Valid reports whether the category is one of the fixed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryColor, CategoryTypography, CategorySpacing, CategoryEffect, CategoryComponentVariant:
		return true
	default:
		return false
	}
}

// Values holds a record's partial token maps per category.
type Values map[Category]map[string]string

// Validate checks the fixed shape: known categories only, non-empty keys.
func (v Values) Validate() error {
	for cat, entries := range v {
		if !cat.Valid() {
			return &SchemaError{Category: string(cat), Reason: "unknown category"}
		}
		for key := range entries {
			if key == "" {
				return &SchemaError{Category: string(cat), Reason: "empty token key"}
			}
		}
	}
	return nil
}

// SchemaError reports a token payload that fails schema validation.
// It is the typed error channel replacing parse-and-hope JSON handling:
// the merger skips the offending record and falls back to the next
// lower-specificity scope's values instead of failing the request.
type SchemaError struct {
	RecordID id.TokenRecordID
	Category string
	Key      string
	Reason   string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("token: record %s: %s", e.RecordID, e.Reason)
	if e.Category != "" {
		msg += fmt.Sprintf(" (category %q", e.Category)
		if e.Key != "" {
			msg += fmt.Sprintf(", key %q", e.Key)
		}
		msg += ")"
	}
	return msg
}

// Record is one scoped design-token record. It belongs to exactly one scope
// key and holds partial token maps per category as a schema-checked payload.
// Records are created and mutated by the admin layer; resolution treats them
// as immutable inputs.
type Record struct {
	types.Entity
	ID id.TokenRecordID `json:"id"`

	Scope scope.Key `json:"scope"`

	// Payload is the stored JSON form of Values. It is decoded with schema
	// validation at resolution time; see Decode.
	Payload json.RawMessage `json:"payload"`

	Active bool `json:"active"`

	// Weight breaks ties between two active records at the identical scope
	// key (a data anomaly): the higher weight wins, then the later ChangedAt.
	Weight int `json:"weight"`

	ChangedAt time.Time `json:"changed_at"`
}

// NewRecord builds an active record for a scope from validated values.
func NewRecord(key scope.Key, values Values) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := values.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("token: encode payload: %w", err)
	}

	return &Record{
		Entity:    types.NewEntity(),
		ID:        id.NewTokenRecordID(),
		Scope:     key,
		Payload:   payload,
		Active:    true,
		ChangedAt: time.Now().UTC(),
	}, nil
}

// Decode parses and schema-checks the record's payload. Malformed payloads
// return a *SchemaError so callers can skip the record.
func (r *Record) Decode() (Values, error) {
	var values Values
	if err := json.Unmarshal(r.Payload, &values); err != nil {
		return nil, &SchemaError{RecordID: r.ID, Reason: "malformed JSON payload"}
	}
	if err := values.Validate(); err != nil {
		var schemaErr *SchemaError
		if ok := asSchemaError(err, &schemaErr); ok {
			schemaErr.RecordID = r.ID
			return nil, schemaErr
		}
		return nil, err
	}
	return values, nil
}

// Meta returns the record's fingerprint contribution.
func (r *Record) Meta() types.RecordMeta {
	return types.RecordMeta{ID: r.ID, ChangedAt: r.ChangedAt}
}

func asSchemaError(err error, target **SchemaError) bool {
	se, ok := err.(*SchemaError)
	if ok {
		*target = se
	}
	return ok
}

// Store loads token records from the backing repository.
type Store interface {
	// LoadActiveTokenRecords returns the active records for one scope key.
	LoadActiveTokenRecords(ctx context.Context, key scope.Key) ([]*Record, error)

	// LoadTokenRecordMeta returns the (id, changed_at) pairs of the active
	// records across the given scope keys. It is the metadata-only call used
	// for cheap cache revalidation.
	LoadTokenRecordMeta(ctx context.Context, keys []scope.Key) ([]types.RecordMeta, error)
}
