package cascade

import "github.com/xraph/cascade/types"

// Re-export common types for convenience so users don't have to import types package.

// Entity is re-exported from types package.
type Entity = types.Entity

// RecordMeta is re-exported from types package.
type RecordMeta = types.RecordMeta

// Re-export Entity constructor
var NewEntity = types.NewEntity
