package builtin

import (
	"github.com/zeebo/xxh3"

	"salesetl/internal/sales"
)

// DeDup removes rows that repeat a (sale key, product id) pair within one
// batch, keeping the first occurrence in input order. It sees only the batch
// it is given; duplicates across chunks or runs are the load mode's concern.
//
// Keys are bucketed by a 64-bit xxh3 hash and compared exactly inside a
// bucket, so hash collisions never merge distinct keys.
type DeDup struct {
	// Hash overrides the key hash (nil selects xxh3).
	Hash func([]byte) uint64
}

// Apply returns the deduplicated batch. The output shares no backing array
// with the input, and applying it again yields the same batch.
func (d DeDup) Apply(in []sales.Sale) []sales.Sale {
	hash := d.Hash
	if hash == nil {
		hash = xxh3.Hash
	}

	seen := make(map[uint64][]sales.DedupKey, len(in))
	out := make([]sales.Sale, 0, len(in))
	var buf []byte

	for _, s := range in {
		k := s.Key()
		buf = append(buf[:0], k.SaleKey...)
		buf = append(buf, 0)
		buf = append(buf, k.ProductID...)
		h := hash(buf)

		dup := false
		for _, prev := range seen[h] {
			if prev == k {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], k)
		out = append(out, s)
	}
	return out
}
