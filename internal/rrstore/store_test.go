package rrstore

import (
	"testing"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
)

var frame = ident.NewTimeline("frame", ident.Sequence)

func newTestStore() *Store {
	return NewStore("test-store", rrevents.NewBus(), Options{
		EnableChangelog:        true,
		ChunkMaxRows:           100,
		ChunkMaxRowsIfUnsorted: 100,
		ChunkMaxBytes:          1 << 30,
	}, nil)
}

func chunkWithRow(t *testing.T, entity ident.EntityPath, comp ident.ComponentIdentifier, frameTime ident.TimeInt, val any) (*rrchunk.Chunk, ident.RowID) {
	t.Helper()
	b := rrchunk.NewBuilder(entity)
	row := ident.NewRowID()
	b.AddRow(row, ident.TimePoint{frame: frameTime}, map[ident.ComponentIdentifier]any{comp: val})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c, row
}

func TestInsertDedupProducesNoEventsOnReplay(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Position3D")
	c, _ := chunkWithRow(t, entity, comp, 100, 1.0)

	events, err := s.Insert(c)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one event for a fresh chunk")
	}

	events, err = s.Insert(c)
	if err != nil {
		t.Fatalf("Insert (replay): %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events replaying an already-ingested chunk, got %d", len(events))
	}
}

func TestInsertNilChunk(t *testing.T) {
	s := newTestStore()
	if _, err := s.Insert(nil); err == nil {
		t.Fatal("expected an error inserting a nil chunk")
	}
}

func TestStaticDominance(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Color")

	temporal, _ := chunkWithRow(t, entity, comp, 100, "RED")
	if _, err := s.Insert(temporal); err != nil {
		t.Fatalf("Insert temporal: %v", err)
	}

	staticBuilder := rrchunk.NewBuilder(entity)
	staticRow := ident.NewRowID()
	staticBuilder.AddRow(staticRow, nil, map[ident.ComponentIdentifier]any{comp: "BLUE"})
	staticChunk, err := staticBuilder.Build()
	if err != nil {
		t.Fatalf("Build static: %v", err)
	}
	if _, err := s.Insert(staticChunk); err != nil {
		t.Fatalf("Insert static: %v", err)
	}

	got, ok := s.StaticChunkFor(entity, comp)
	if !ok {
		t.Fatal("expected an authoritative static chunk")
	}
	if got.ID() != staticChunk.ID() {
		t.Fatal("expected the static chunk to be authoritative over temporal data")
	}
}

func TestStaticOverrideRequiresGreaterRowID(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Color")

	// RowID is monotonic (ident.NewRowID), so generating rowLow before
	// rowHigh guarantees rowLow < rowHigh regardless of insertion order.
	rowLow := ident.NewRowID()
	rowHigh := ident.NewRowID()

	high := rrchunk.NewBuilder(entity)
	high.AddRow(rowHigh, nil, map[ident.ComponentIdentifier]any{comp: "BLUE"})
	highChunk, err := high.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Insert(highChunk); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	low := rrchunk.NewBuilder(entity)
	low.AddRow(rowLow, nil, map[ident.ComponentIdentifier]any{comp: "GREEN"})
	lowChunk, err := low.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Insert(lowChunk); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := s.StaticChunkFor(entity, comp)
	if !ok {
		t.Fatal("expected an authoritative static chunk")
	}
	if got.ID() != highChunk.ID() {
		t.Fatal("a static write with a smaller RowId must not override one with a greater RowId")
	}
}

func TestCompactionMergesSingleNeighborAndEmitsDeletionsBeforeAddition(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Position3D")

	b1 := rrchunk.NewBuilder(entity)
	for i := range 10 {
		b1.AddRow(ident.NewRowID(), ident.TimePoint{frame: ident.TimeInt(i)}, map[ident.ComponentIdentifier]any{comp: float64(i)})
	}
	c1, err := b1.Build()
	if err != nil {
		t.Fatalf("Build c1: %v", err)
	}
	if _, err := s.Insert(c1); err != nil {
		t.Fatalf("Insert c1: %v", err)
	}

	b2 := rrchunk.NewBuilder(entity)
	for i := 10; i < 20; i++ {
		b2.AddRow(ident.NewRowID(), ident.TimePoint{frame: ident.TimeInt(i)}, map[ident.ComponentIdentifier]any{comp: float64(i)})
	}
	c2, err := b2.Build()
	if err != nil {
		t.Fatalf("Build c2: %v", err)
	}
	events, err := s.Insert(c2)
	if err != nil {
		t.Fatalf("Insert c2: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (2 deletions + 1 addition)", len(events))
	}
	for _, e := range events[:2] {
		if e.Diff.Kind != rrevents.DiffDeletion {
			t.Fatalf("expected the first two events to be deletions, got %v", e.Diff.Kind)
		}
	}
	last := events[2]
	if last.Diff.Kind != rrevents.DiffAddition {
		t.Fatalf("expected the last event to be an addition, got %v", last.Diff.Kind)
	}
	if last.Diff.Chunk.NumRows() != 20 {
		t.Fatalf("got merged chunk with %d rows, want 20", last.Diff.Chunk.NumRows())
	}

	chunks := s.ChunksFor(entity, frame, comp)
	if len(chunks) != 1 {
		t.Fatalf("got %d resident chunks after compaction, want 1", len(chunks))
	}
}

func TestTimeRangeUnion(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Position3D")

	c1, _ := chunkWithRow(t, entity, comp, 10, 1.0)
	c2, _ := chunkWithRow(t, entity, comp, 50, 2.0)
	if _, err := s.Insert(c1); err != nil {
		t.Fatalf("Insert c1: %v", err)
	}
	if _, err := s.Insert(c2); err != nil {
		t.Fatalf("Insert c2: %v", err)
	}

	tr, ok := s.TimeRange(frame)
	if !ok {
		t.Fatal("expected a time range after ingesting chunks")
	}
	if tr.Min != 10 || tr.Max != 50 {
		t.Fatalf("got [%d,%d], want [10,50]", tr.Min, tr.Max)
	}
}

func TestAllComponentsForEntity(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	pos := ident.Bare("Position3D")
	color := ident.Bare("Color")

	c1, _ := chunkWithRow(t, entity, pos, 1, 1.0)
	c2, _ := chunkWithRow(t, entity, color, 2, "RED")
	if _, err := s.Insert(c1); err != nil {
		t.Fatalf("Insert c1: %v", err)
	}
	if _, err := s.Insert(c2); err != nil {
		t.Fatalf("Insert c2: %v", err)
	}

	comps := s.AllComponentsForEntity(entity)
	if len(comps) != 2 {
		t.Fatalf("got %d components, want 2", len(comps))
	}
}

func TestInsertVirtualMakesChunkResidentAndPublishesVirtualAddition(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Position3D")

	var captured []rrevents.ChunkStoreEvent
	s.bus.Register(rrevents.SubscriberFunc(func(events []rrevents.ChunkStoreEvent) {
		captured = append(captured, events...)
	}))

	c, _ := chunkWithRow(t, entity, comp, 7, 1.0)
	events, err := s.InsertVirtual([]*rrchunk.Chunk{c})
	if err != nil {
		t.Fatalf("InsertVirtual: %v", err)
	}
	if len(events) != 1 || events[0].Diff.Kind != rrevents.DiffVirtualAddition {
		t.Fatalf("got %v, want a single VirtualAddition event", events)
	}
	if len(events[0].Diff.Metas) != 1 || events[0].Diff.Metas[0].ID != c.ID() {
		t.Fatalf("expected the VirtualAddition to carry the fetched chunk's metadata")
	}
	if len(captured) != 1 || captured[0].Diff.Kind != rrevents.DiffVirtualAddition {
		t.Fatalf("expected the bus to deliver the VirtualAddition to subscribers, got %v", captured)
	}

	got, ok := s.Chunk(c.ID())
	if !ok || got.ID() != c.ID() {
		t.Fatal("expected the fetched chunk to become resident")
	}

	chunks := s.ChunksFor(entity, frame, comp)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks indexed for (entity, frame, comp), want 1", len(chunks))
	}
}

func TestInsertVirtualSkipsAlreadyResidentChunks(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Position3D")
	c, _ := chunkWithRow(t, entity, comp, 7, 1.0)

	if _, err := s.Insert(c); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	events, err := s.InsertVirtual([]*rrchunk.Chunk{c})
	if err != nil {
		t.Fatalf("InsertVirtual: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no VirtualAddition for an already-resident chunk, got %d events", len(events))
	}
}

func TestGCNeverEvictsStaticOrProtected(t *testing.T) {
	s := newTestStore()
	entity := ident.NewEntityPath("world")
	comp := ident.Bare("Color")

	staticBuilder := rrchunk.NewBuilder(entity)
	staticBuilder.AddRow(ident.NewRowID(), nil, map[ident.ComponentIdentifier]any{comp: "BLUE"})
	staticChunk, err := staticBuilder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Insert(staticChunk); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	protectedChunk, _ := chunkWithRow(t, entity, comp, 1, "RED")
	if _, err := s.Insert(protectedChunk); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	protected := map[rrchunk.ChunkID]bool{protectedChunk.ID(): true}
	s.GC(0, protected)

	if _, ok := s.StaticChunkFor(entity, comp); !ok {
		t.Fatal("GC must never evict static chunks")
	}
	if _, ok := s.Chunk(protectedChunk.ID()); !ok {
		t.Fatal("GC must never evict protected chunks")
	}
}
