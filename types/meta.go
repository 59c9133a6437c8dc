package types

import (
	"time"

	"github.com/xraph/cascade/id"
)

// RecordMeta identifies one stored record revision: its ID plus the
// last-change timestamp. A sorted list of RecordMeta values is the input to
// the resolution-cache fingerprint, so two lists are equivalent exactly when
// the same record revisions contributed to a resolution.
type RecordMeta struct {
	ID        id.ID     `json:"id"`
	ChangedAt time.Time `json:"changed_at"`
}
