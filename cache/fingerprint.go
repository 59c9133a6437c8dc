package cache

import (
	"hash/fnv"
	"io"
	"sort"
	"strconv"

	"github.com/xraph/cascade/types"
)

// Fingerprint hashes the (id, changed_at) pairs of the records that
// contributed to a resolution. Two metadata sets produce the same
// fingerprint exactly when the same record revisions were involved, so a
// changed, added, or removed record at any contributing scope changes the
// result. Input order does not matter.
func Fingerprint(metas []types.RecordMeta) uint64 {
	sorted := make([]types.RecordMeta, len(metas))
	copy(sorted, metas)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].ID.String(), sorted[j].ID.String()
		if a != b {
			return a < b
		}
		return sorted[i].ChangedAt.Before(sorted[j].ChangedAt)
	})

	h := fnv.New64a()
	for _, m := range sorted {
		io.WriteString(h, m.ID.String())
		io.WriteString(h, "@")
		io.WriteString(h, strconv.FormatInt(m.ChangedAt.UTC().UnixNano(), 10))
		io.WriteString(h, "\n")
	}
	return h.Sum64()
}
