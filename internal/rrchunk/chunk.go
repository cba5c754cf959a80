package rrchunk

import (
	"errors"
	"fmt"
	"sort"

	"rerun-chunkstore/internal/ident"
)

// ErrBadChunk is returned for malformed chunks: length mismatch, duplicate
// RowIds within the chunk, unknown time type, or missing entity path
// (spec.md §7).
var ErrBadChunk = errors.New("bad chunk")

// ColumnDescriptor is the column-level metadata the spec requires be
// carried alongside every component column: its identity, the arrow inner
// datatype it would decode to (opaque to this package, per spec.md §1's
// non-goal on Arrow encoding), and latchable presence flags used to build
// ChunkMeta (spec.md §4.3.1).
type ColumnDescriptor struct {
	Component ident.ComponentIdentifier
	ArrowType string // opaque descriptive tag, e.g. "f32x3", "utf8"; never interpreted here
	HasData   bool
	IsStatic  bool
}

// TimeColumn is a per-timeline index column: one TimeInt per row, plus a
// latched is_sorted flag (spec.md §3.2 invariants 3/5).
type TimeColumn struct {
	Values   []ident.TimeInt
	IsSorted bool
}

// ComponentColumn is a single component's data column: one opaque value per
// row (nil where the row has no value for this component). Arrow decoding
// is an external collaborator (spec.md §1); this package only needs to
// know which rows are present, not how to interpret their payloads.
type ComponentColumn struct {
	Descriptor ColumnDescriptor
	Values     []any
}

// Chunk is an immutable batch of rows for a single entity (spec.md §3.2).
type Chunk struct {
	id       ChunkID
	entity   ident.EntityPath
	rowIDs   []ident.RowID
	rowSort  bool // invariant 6: is_row_id_sorted
	timeline map[ident.Timeline]TimeColumn
	columns  map[string]ComponentColumn // keyed by ComponentIdentifier.Key()
}

// ID returns the chunk's identity.
func (c *Chunk) ID() ChunkID { return c.id }

// Entity returns the entity this chunk's rows belong to.
func (c *Chunk) Entity() ident.EntityPath { return c.entity }

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int { return len(c.rowIDs) }

// RowID returns the RowID of the row at position i.
func (c *Chunk) RowID(i int) ident.RowID { return c.rowIDs[i] }

// IsRowIDSorted reports invariant 6 of spec.md §3.2.
func (c *Chunk) IsRowIDSorted() bool { return c.rowSort }

// IsStatic reports whether the chunk carries zero timeline columns
// (spec.md §3.2 invariant 4): its rows are logically present on every
// timeline.
func (c *Chunk) IsStatic() bool { return len(c.timeline) == 0 }

// Timelines returns the set of timelines this chunk has index columns for.
func (c *Chunk) Timelines() []ident.Timeline {
	out := make([]ident.Timeline, 0, len(c.timeline))
	for t := range c.timeline {
		out = append(out, t)
	}
	return out
}

// TimeColumn returns the index column for a timeline, and whether it exists.
func (c *Chunk) TimeColumn(t ident.Timeline) (TimeColumn, bool) {
	tc, ok := c.timeline[t]
	return tc, ok
}

// IsSortedOn reports whether the chunk's index column for t is
// non-decreasing (spec.md §3.2 invariant 5). Returns false if the chunk has
// no column for t.
func (c *Chunk) IsSortedOn(t ident.Timeline) bool {
	tc, ok := c.timeline[t]
	return ok && tc.IsSorted
}

// Components returns the set of component identifiers carried by the chunk.
func (c *Chunk) Components() []ident.ComponentIdentifier {
	out := make([]ident.ComponentIdentifier, 0, len(c.columns))
	for _, col := range c.columns {
		out = append(out, col.Descriptor.Component)
	}
	return out
}

// Column returns the component column for comp, and whether it exists.
func (c *Chunk) Column(comp ident.ComponentIdentifier) (ComponentColumn, bool) {
	col, ok := c.columns[comp.Key()]
	return col, ok
}

// HasComponentAtRow reports whether row i has a non-null value for comp.
func (c *Chunk) HasComponentAtRow(comp ident.ComponentIdentifier, i int) bool {
	col, ok := c.columns[comp.Key()]
	if !ok || i < 0 || i >= len(col.Values) {
		return false
	}
	return col.Values[i] != nil
}

// ValueAtRow returns the opaque value of comp at row i.
func (c *Chunk) ValueAtRow(comp ident.ComponentIdentifier, i int) any {
	col, ok := c.columns[comp.Key()]
	if !ok || i < 0 || i >= len(col.Values) {
		return nil
	}
	return col.Values[i]
}

// TimeAtRow returns the TimeInt of row i on timeline t.
func (c *Chunk) TimeAtRow(t ident.Timeline, i int) (ident.TimeInt, bool) {
	tc, ok := c.timeline[t]
	if !ok || i < 0 || i >= len(tc.Values) {
		return 0, false
	}
	return tc.Values[i], true
}

// TimeRangeOn returns the [min,max] of the non-null rows of the chunk's
// index column for t (spec.md §3.3: time_range_per_chunk).
func (c *Chunk) TimeRangeOn(t ident.Timeline) (lo, hi ident.TimeInt, ok bool) {
	tc, exists := c.timeline[t]
	if !exists {
		return 0, 0, false
	}
	for _, v := range tc.Values {
		if v.IsStatic() {
			// Filler for a row that has no coordinate on t (see AddRow).
			continue
		}
		if !ok || v < lo {
			lo = v
		}
		if !ok || v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}

// SortedRowOrder returns row indices in ascending order for timeline t,
// computing and caching nothing itself (caller-side caches live in
// rrquery, per spec.md §4.2.2: "sort its rows lazily, caching the
// permutation"). If the chunk's column is already sorted, this is the
// identity permutation.
func (c *Chunk) SortedRowOrder(t ident.Timeline) []int {
	tc, ok := c.timeline[t]
	n := c.NumRows()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if !ok || tc.IsSorted {
		return order
	}
	sort.SliceStable(order, func(i, j int) bool {
		return tc.Values[order[i]] < tc.Values[order[j]]
	})
	return order
}

// EstimatedBytes is a rough in-memory size estimate used by compaction's
// chunk_max_bytes threshold (spec.md §4.1.1 step 4). It need not be exact:
// the teacher's own size accounting (chunk/memory.Manager) is similarly
// approximate (raw+attr byte counts, not a precise allocator tally).
func (c *Chunk) EstimatedBytes() int64 {
	var total int64
	total += int64(len(c.rowIDs)) * 16
	for _, tc := range c.timeline {
		total += int64(len(tc.Values)) * 8
	}
	for _, col := range c.columns {
		total += int64(len(col.Values)) * 32 // opaque-value placeholder cost
	}
	return total
}

// Meta projects the chunk down to the lightweight metadata subscribers need
// to update indices without decoding the chunk (spec.md §4.3.1).
func (c *Chunk) Meta() ChunkMeta {
	cols := make([]ColumnDescriptor, 0, len(c.columns))
	for _, col := range c.columns {
		d := col.Descriptor
		d.IsStatic = c.IsStatic()
		cols = append(cols, d)
	}
	return ChunkMeta{
		ID:      c.id,
		Entity:  c.entity,
		Columns: cols,
	}
}

// ChunkMeta is the minimum information subscribers need to update indices
// without decoding the chunk (spec.md §4.3.1 "chunk_metadata").
type ChunkMeta struct {
	ID      ChunkID
	Entity  ident.EntityPath
	Columns []ColumnDescriptor
}

// Builder accumulates rows and columns, producing an immutable Chunk on
// Build(). This mirrors the teacher's accumulate-then-seal flow
// (chunk/memory.chunkState growing until rotation) but here "seal" is a
// one-shot construction rather than a mutable append target: ingestion-side
// mutability belongs to rrstore, not rrchunk.
type Builder struct {
	entity   ident.EntityPath
	rowIDs   []ident.RowID
	timeline map[ident.Timeline][]ident.TimeInt
	columns  map[string]*ComponentColumn
	n        int
}

// NewBuilder starts a chunk builder for the given entity.
func NewBuilder(entity ident.EntityPath) *Builder {
	return &Builder{
		entity:   entity,
		timeline: make(map[ident.Timeline][]ident.TimeInt),
		columns:  make(map[string]*ComponentColumn),
	}
}

// AddRow appends one row: a RowID, a time point (possibly empty for a
// static row), and a set of component values (nil entries mean "no value
// logged for this component on this row").
func (b *Builder) AddRow(row ident.RowID, point ident.TimePoint, values map[ident.ComponentIdentifier]any) {
	idx := b.n
	b.n++
	b.rowIDs = append(b.rowIDs, row)

	for t := range b.timeline {
		if v, ok := point[t]; ok {
			b.timeline[t] = append(b.timeline[t], v)
		} else {
			b.timeline[t] = append(b.timeline[t], ident.TimeIntStatic)
		}
	}
	for t, v := range point {
		if _, ok := b.timeline[t]; !ok {
			col := make([]ident.TimeInt, idx, idx+1)
			for i := range col {
				col[i] = ident.TimeIntStatic
			}
			b.timeline[t] = append(col, v)
		}
	}

	for comp, val := range values {
		col, ok := b.columns[comp.Key()]
		if !ok {
			col = &ComponentColumn{
				Descriptor: ColumnDescriptor{Component: comp, ArrowType: "opaque"},
				Values:     make([]any, idx),
			}
			b.columns[comp.Key()] = col
		}
		for len(col.Values) < idx {
			col.Values = append(col.Values, nil)
		}
		col.Values = append(col.Values, val)
		if val != nil {
			col.Descriptor.HasData = true
		}
	}
	for _, col := range b.columns {
		for len(col.Values) <= idx {
			col.Values = append(col.Values, nil)
		}
	}
}

// WithArrowType overrides the opaque arrow-type tag recorded for comp.
// Optional; purely descriptive (spec.md §1: Arrow encoding is an external
// collaborator, this package never interprets the tag).
func (b *Builder) WithArrowType(comp ident.ComponentIdentifier, arrowType string) *Builder {
	if col, ok := b.columns[comp.Key()]; ok {
		col.Descriptor.ArrowType = arrowType
	}
	return b
}

// Build validates invariants 1-6 of spec.md §3.2 and produces the frozen
// Chunk, or ErrBadChunk if the accumulated rows are malformed.
func (b *Builder) Build() (*Chunk, error) {
	n := b.n
	if n == 0 {
		return nil, fmt.Errorf("%w: chunk has zero rows", ErrBadChunk)
	}
	if b.entity.Len() == 0 {
		return nil, fmt.Errorf("%w: missing entity path", ErrBadChunk)
	}

	seen := make(map[ident.RowID]struct{}, n)
	for _, r := range b.rowIDs {
		if _, dup := seen[r]; dup {
			return nil, fmt.Errorf("%w: duplicate row id %s", ErrBadChunk, r)
		}
		seen[r] = struct{}{}
	}

	timeline := make(map[ident.Timeline]TimeColumn, len(b.timeline))
	for t, vals := range b.timeline {
		if t.Typ < ident.Sequence || t.Typ > ident.Duration {
			return nil, fmt.Errorf("%w: timeline %s has unknown time type", ErrBadChunk, t)
		}
		if len(vals) != n {
			return nil, fmt.Errorf("%w: timeline %s column length %d != %d rows", ErrBadChunk, t, len(vals), n)
		}
		timeline[t] = TimeColumn{Values: vals, IsSorted: isNonDecreasing(vals)}
	}

	columns := make(map[string]ComponentColumn, len(b.columns))
	for key, col := range b.columns {
		if len(col.Values) != n {
			return nil, fmt.Errorf("%w: component %s column length %d != %d rows", ErrBadChunk, col.Descriptor.Component, len(col.Values), n)
		}
		columns[key] = *col
	}

	return &Chunk{
		id:       NewChunkID(),
		entity:   b.entity,
		rowIDs:   b.rowIDs,
		rowSort:  isRowIDSorted(b.rowIDs),
		timeline: timeline,
		columns:  columns,
	}, nil
}

func isNonDecreasing(vals []ident.TimeInt) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			return false
		}
	}
	return true
}

func isRowIDSorted(rows []ident.RowID) bool {
	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Less(rows[i]) && rows[i-1] != rows[i] {
			return false
		}
	}
	return true
}
