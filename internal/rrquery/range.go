package rrquery

import (
	"container/heap"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrstore"
)

// RangeResult maps each requested component to its entries in ascending
// (time, RowId) order. A component with no data in range is simply
// absent — Range never errors (spec.md §4.2.3).
type RangeResult map[ident.ComponentIdentifier][]Entry

// Range answers a closed [from, to] interval query, both ends inclusive
// (spec.md §4.2.2): for each component, a static value contributes at
// most one entry at the start of the sequence, followed by every
// temporal row in [from, to] in ascending (time, RowId) order, merged
// across every chunk that carries the component on timeline. The merge
// is an N-way cursor merge over a container/heap min-heap, the same
// shape the teacher uses for its IngestTS-ordered cursor merge, re-keyed
// here to ident.CompoundIndex ordering.
func Range(store *rrstore.Store, entity ident.EntityPath, timeline ident.Timeline, from, to ident.TimeInt, components []ident.ComponentIdentifier) RangeResult {
	result := make(RangeResult, len(components))
	for _, comp := range components {
		if entries := rangeOne(store, entity, timeline, from, to, comp); len(entries) > 0 {
			result[comp] = entries
		}
	}
	return result
}

// rangeCursor walks one chunk's rows, in ascending timeline order,
// restricted to the rows that fall in [from, to] and carry a value for
// the cursor's component. rows is computed once at construction — the
// "sort lazily, cache the permutation" requirement (spec.md §4.2.2)
// amounts here to building this filtered permutation a single time per
// Range call rather than re-deriving it on every heap comparison.
type rangeCursor struct {
	chunk    *rrchunk.Chunk
	timeline ident.Timeline
	rows     []int
	pos      int
	idx      ident.CompoundIndex
}

func newRangeCursor(c *rrchunk.Chunk, timeline ident.Timeline, comp ident.ComponentIdentifier, from, to ident.TimeInt) *rangeCursor {
	order := c.SortedRowOrder(timeline)
	rows := make([]int, 0, len(order))
	for _, i := range order {
		if !c.HasComponentAtRow(comp, i) {
			continue
		}
		t, ok := c.TimeAtRow(timeline, i)
		if !ok || t < from || t > to {
			continue
		}
		rows = append(rows, i)
	}
	if len(rows) == 0 {
		return nil
	}
	rc := &rangeCursor{chunk: c, timeline: timeline, rows: rows}
	rc.refresh()
	return rc
}

func (rc *rangeCursor) refresh() {
	i := rc.rows[rc.pos]
	t, _ := rc.chunk.TimeAtRow(rc.timeline, i)
	rc.idx = ident.CompoundIndex{Time: t, RowID: rc.chunk.RowID(i)}
}

func (rc *rangeCursor) row() int { return rc.rows[rc.pos] }

// advance moves to the next row, reporting whether the cursor is still
// valid.
func (rc *rangeCursor) advance() bool {
	rc.pos++
	if rc.pos >= len(rc.rows) {
		return false
	}
	rc.refresh()
	return true
}

// rangeHeap orders cursors by their current compound index, ascending —
// the mirror of the teacher's mergeHeap, which orders by IngestTS.
type rangeHeap []*rangeCursor

func (h rangeHeap) Len() int            { return len(h) }
func (h rangeHeap) Less(i, j int) bool  { return h[i].idx.Less(h[j].idx) }
func (h rangeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rangeHeap) Push(x any)         { *h = append(*h, x.(*rangeCursor)) }
func (h *rangeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func rangeOne(store *rrstore.Store, entity ident.EntityPath, timeline ident.Timeline, from, to ident.TimeInt, comp ident.ComponentIdentifier) []Entry {
	var out []Entry
	if e, ok := staticEntry(store, entity, comp); ok {
		out = append(out, e)
	}

	var h rangeHeap
	for _, c := range store.ChunksFor(entity, timeline, comp) {
		lo, hi, ok := c.TimeRangeOn(timeline)
		if !ok || hi < from || lo > to {
			continue
		}
		if cur := newRangeCursor(c, timeline, comp, from, to); cur != nil {
			h = append(h, cur)
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		top := h[0]
		out = append(out, Entry{Index: top.idx, Chunk: top.chunk, Row: top.row()})
		if top.advance() {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return out
}
