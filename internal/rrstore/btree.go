package rrstore

import "github.com/google/btree"

// btreeG is the concrete ordered-by-min-time set type backing
// per_component (spec.md §3.3): google/btree's generic BTreeG gives the
// AscendGreaterOrEqual/DescendLessOrEqual neighbor walk compaction needs
// (spec.md §4.1.1 step 4) without hand-rolling a balanced tree.
type btreeG = btree.BTreeG[chunkTimeEntry]

const btreeDegree = 32

func btreeNew() *btreeG {
	return btree.NewG(btreeDegree, chunkTimeEntryLess)
}
