// Package rrquery implements latest-at and range queries over a chunk
// store snapshot (spec.md §4.2). Both query shapes are free functions,
// referentially transparent given the store's current state, and never
// fail: an unknown entity, timeline, or component simply yields an empty
// result (spec.md §4.2.3).
package rrquery

import (
	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrstore"
)

// Entry locates one resolved row: the owning chunk plus the compound
// index the caller uses to find the row within it (spec.md §4.2.1: "the
// returned chunk is the owning chunk, not a row"). Row is the row's
// offset within Chunk, included as a convenience so callers don't have to
// re-search for the RowId that Index already carries.
type Entry struct {
	Index ident.CompoundIndex
	Chunk *rrchunk.Chunk
	Row   int
}

// latestStaticRow finds the row in a static chunk with the greatest
// RowId among rows carrying a value for comp — the row that determined
// the chunk's authoritative status for (entity, comp) in the first place
// (spec.md §4.1.1 step 2).
func latestStaticRow(c *rrchunk.Chunk, comp ident.ComponentIdentifier) (int, bool) {
	best := -1
	var bestRow ident.RowID
	for i := 0; i < c.NumRows(); i++ {
		if !c.HasComponentAtRow(comp, i) {
			continue
		}
		r := c.RowID(i)
		if best == -1 || bestRow.Less(r) {
			best = i
			bestRow = r
		}
	}
	return best, best != -1
}

// staticEntry resolves the static overlay for (entity, comp), if any
// (spec.md §4.2.1 step 1, §4.2.2 "a static component contributes at most
// one entry ... at the start of the sequence").
func staticEntry(store *rrstore.Store, entity ident.EntityPath, comp ident.ComponentIdentifier) (Entry, bool) {
	c, ok := store.StaticChunkFor(entity, comp)
	if !ok {
		return Entry{}, false
	}
	row, ok := latestStaticRow(c, comp)
	if !ok {
		return Entry{}, false
	}
	return Entry{Index: ident.Static(c.RowID(row)), Chunk: c, Row: row}, true
}
