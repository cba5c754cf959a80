package rrchunk

import (
	"testing"

	"rerun-chunkstore/internal/ident"
)

var frame = ident.NewTimeline("frame", ident.Sequence)

func buildSimpleChunk(t *testing.T, n int) (*Chunk, []ident.RowID) {
	t.Helper()
	entity := ident.NewEntityPath("world", "points")
	pos := ident.Bare("Position3D")

	b := NewBuilder(entity)
	rows := make([]ident.RowID, n)
	for i := range n {
		r := ident.NewRowID()
		rows[i] = r
		b.AddRow(r, ident.TimePoint{frame: ident.TimeInt(i)}, map[ident.ComponentIdentifier]any{
			pos: float32(i),
		})
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c, rows
}

func TestBuilderProducesWellFormedChunk(t *testing.T) {
	c, rows := buildSimpleChunk(t, 5)
	if c.NumRows() != 5 {
		t.Fatalf("got %d rows, want 5", c.NumRows())
	}
	if !c.IsRowIDSorted() {
		t.Fatal("rows were inserted in RowID creation order, expected sorted")
	}
	if c.IsStatic() {
		t.Fatal("chunk has a timeline column, must not be static")
	}
	if !c.IsSortedOn(frame) {
		t.Fatal("frame values were inserted ascending, expected sorted")
	}
	for i, r := range rows {
		if c.RowID(i) != r {
			t.Fatalf("row %d: got %s, want %s", i, c.RowID(i), r)
		}
	}
}

func TestBuilderRejectsDuplicateRowID(t *testing.T) {
	entity := ident.NewEntityPath("world")
	r := ident.NewRowID()
	b := NewBuilder(entity)
	b.AddRow(r, ident.TimePoint{frame: 0}, nil)
	b.AddRow(r, ident.TimePoint{frame: 1}, nil)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected ErrBadChunk for duplicate row id")
	}
}

func TestBuilderDetectsUnsortedTimeline(t *testing.T) {
	entity := ident.NewEntityPath("world")
	b := NewBuilder(entity)
	b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 10}, nil)
	b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 5}, nil)
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.IsSortedOn(frame) {
		t.Fatal("expected a descending insert to be detected as unsorted")
	}
}

func TestStaticChunkHasNoTimelineColumns(t *testing.T) {
	entity := ident.NewEntityPath("world")
	label := ident.Bare("Label")
	b := NewBuilder(entity)
	b.AddRow(ident.NewRowID(), nil, map[ident.ComponentIdentifier]any{label: "hello"})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !c.IsStatic() {
		t.Fatal("chunk with no time point on any row should be static")
	}
}

func TestComponentColumnNullsPreserved(t *testing.T) {
	entity := ident.NewEntityPath("world")
	pos := ident.Bare("Position3D")
	color := ident.Bare("Color")
	b := NewBuilder(entity)
	r0, r1 := ident.NewRowID(), ident.NewRowID()
	b.AddRow(r0, ident.TimePoint{frame: 0}, map[ident.ComponentIdentifier]any{pos: 1.0})
	b.AddRow(r1, ident.TimePoint{frame: 1}, map[ident.ComponentIdentifier]any{color: "red"})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.HasComponentAtRow(pos, 1) {
		t.Fatal("row 1 never logged Position3D, expected absent")
	}
	if !c.HasComponentAtRow(color, 1) {
		t.Fatal("row 1 logged Color, expected present")
	}
	if c.HasComponentAtRow(color, 0) {
		t.Fatal("row 0 never logged Color, expected absent")
	}
}

func TestSortedRowOrder(t *testing.T) {
	entity := ident.NewEntityPath("world")
	b := NewBuilder(entity)
	b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 30}, nil)
	b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 10}, nil)
	b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 20}, nil)
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	order := c.SortedRowOrder(frame)
	var prev ident.TimeInt = ident.TimeIntMin
	for _, i := range order {
		v, _ := c.TimeAtRow(frame, i)
		if v < prev {
			t.Fatalf("SortedRowOrder did not produce ascending times: %v at %v < prev %v", v, i, prev)
		}
		prev = v
	}
}

func TestEmptyChunkRejected(t *testing.T) {
	b := NewBuilder(ident.NewEntityPath("world"))
	if _, err := b.Build(); err == nil {
		t.Fatal("expected ErrBadChunk for a chunk with zero rows")
	}
}

func TestChunkIDRoundTrip(t *testing.T) {
	id := NewChunkID()
	s := id.String()
	parsed, err := ParseChunkID(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("got %s, want %s", parsed, id)
	}
}

func TestChunkMetaProjectsColumns(t *testing.T) {
	c, _ := buildSimpleChunk(t, 3)
	meta := c.Meta()
	if meta.ID != c.ID() {
		t.Fatal("meta id must match chunk id")
	}
	if len(meta.Columns) != 1 {
		t.Fatalf("got %d columns, want 1", len(meta.Columns))
	}
	if !meta.Columns[0].HasData {
		t.Fatal("expected HasData to latch true once any row has a value")
	}
}
