package rrquery

import (
	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrstore"
)

// LatestAtResult maps each requested component to its resolved entry.
// Components with no value at or before at are simply absent from the
// map — LatestAt never errors (spec.md §4.2.3).
type LatestAtResult map[ident.ComponentIdentifier]Entry

// LatestAt answers a point-in-time query (spec.md §4.2.1): for each
// requested component, a static value always wins over temporal data;
// otherwise the candidate with the greatest (time, RowId) <= (at,
// RowIdMax) is returned. An unknown entity, timeline, or component
// simply contributes no entry.
func LatestAt(store *rrstore.Store, entity ident.EntityPath, timeline ident.Timeline, at ident.TimeInt, components []ident.ComponentIdentifier) LatestAtResult {
	result := make(LatestAtResult, len(components))
	for _, comp := range components {
		if e, ok := latestAtOne(store, entity, timeline, at, comp); ok {
			result[comp] = e
		}
	}
	return result
}

func latestAtOne(store *rrstore.Store, entity ident.EntityPath, timeline ident.Timeline, at ident.TimeInt, comp ident.ComponentIdentifier) (Entry, bool) {
	if e, ok := staticEntry(store, entity, comp); ok {
		return e, true
	}

	var best Entry
	found := false
	for _, c := range store.ChunksFor(entity, timeline, comp) {
		lo, _, ok := c.TimeRangeOn(timeline)
		if !ok || lo > at {
			continue
		}
		for i := 0; i < c.NumRows(); i++ {
			if !c.HasComponentAtRow(comp, i) {
				continue
			}
			t, ok := c.TimeAtRow(timeline, i)
			if !ok || t > at {
				continue
			}
			idx := ident.CompoundIndex{Time: t, RowID: c.RowID(i)}
			if !found || best.Index.Less(idx) {
				best = Entry{Index: idx, Chunk: c, Row: i}
				found = true
			}
		}
	}
	return best, found
}
