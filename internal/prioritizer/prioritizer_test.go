package prioritizer

import (
	"context"
	"errors"
	"testing"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
	"rerun-chunkstore/internal/rrstore"
)

var frame = ident.NewTimeline("frame", ident.Sequence)

func entry(entity ident.EntityPath, lo, hi ident.TimeInt, bytes uint64) ManifestEntry {
	return ManifestEntry{
		ChunkID:           rrchunk.NewChunkID(),
		Entity:            entity,
		TimeRanges:        map[ident.Timeline]rrstore.TimeRange{frame: {Min: lo, Max: hi}},
		UncompressedBytes: bytes,
		CompressedBytes:   bytes / 2,
	}
}

func staticEntry(entity ident.EntityPath, bytes uint64) ManifestEntry {
	return ManifestEntry{
		ChunkID:           rrchunk.NewChunkID(),
		Entity:            entity,
		IsStatic:          true,
		UncompressedBytes: bytes,
		CompressedBytes:   bytes / 2,
	}
}

func noopFetch(ctx context.Context, ids []rrchunk.ChunkID) ([]*rrchunk.Chunk, error) {
	return nil, nil
}

func TestNewManifestEntryForDerivesSizesFromChunkContent(t *testing.T) {
	entity := ident.NewEntityPath("world", "robot")
	b := rrchunk.NewBuilder(entity)
	for i := 0; i < 64; i++ {
		b.AddRow(ident.NewRowID(), ident.TimePoint{frame: ident.TimeInt(i)}, map[ident.ComponentIdentifier]any{
			ident.Bare("Position3D"): float64(i),
		})
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entry, err := NewManifestEntryFor(c, frame)
	if err != nil {
		t.Fatalf("NewManifestEntryFor: %v", err)
	}
	if entry.UncompressedBytes == 0 {
		t.Fatal("expected a non-zero uncompressed size for a 64-row chunk")
	}
	if entry.CompressedBytes == 0 || entry.CompressedBytes > entry.UncompressedBytes {
		t.Fatalf("got compressed=%d uncompressed=%d, want 0 < compressed <= uncompressed", entry.CompressedBytes, entry.UncompressedBytes)
	}
	if entry.TimeRanges[frame].Min != 0 || entry.TimeRanges[frame].Max != 63 {
		t.Fatalf("got time range %v, want [0,63]", entry.TimeRanges[frame])
	}
}

func TestPrioritizeFetchesUnresidentChunksWithinBudget(t *testing.T) {
	entity := ident.NewEntityPath("world")
	e1 := entry(entity, 0, 10, 100)
	e2 := entry(entity, 10, 20, 100)
	manifest := NewRrdManifest([]ManifestEntry{e1, e2})

	p := NewChunkPrioritizer(manifest, nil)
	opts := Options{
		Timeline:                      frame,
		StartTime:                     0,
		TotalUncompressedByteBudget:   1000,
		MaxUncompressedBytesPerBatch:  1000,
		MaxUncompressedBytesInTransit: 1000,
	}
	promises, protected, err := p.PrioritizeAndPrefetch(opts, TrackedChunks{}, manifest, map[rrchunk.ChunkID]bool{}, noopFetch)
	if err != nil {
		t.Fatalf("PrioritizeAndPrefetch: %v", err)
	}
	if len(protected) != 0 {
		t.Fatalf("got %d protected chunks, want 0 (nothing resident)", len(protected))
	}
	total := 0
	for _, pr := range promises {
		total += len(pr.ChunkIDs)
	}
	if total != 2 {
		t.Fatalf("got %d chunks queued across promises, want 2", total)
	}
}

func TestPrioritizeProtectsResidentUsedChunks(t *testing.T) {
	entity := ident.NewEntityPath("world")
	e1 := entry(entity, 0, 10, 100)
	manifest := NewRrdManifest([]ManifestEntry{e1})

	p := NewChunkPrioritizer(manifest, nil)
	opts := Options{
		Timeline:                     frame,
		TotalUncompressedByteBudget:  1000,
		MaxUncompressedBytesPerBatch: 1000,
	}
	resident := map[rrchunk.ChunkID]bool{e1.ChunkID: true}
	tracked := TrackedChunks{Used: []rrchunk.ChunkID{e1.ChunkID}}

	_, protected, err := p.PrioritizeAndPrefetch(opts, tracked, manifest, resident, noopFetch)
	if err != nil {
		t.Fatalf("PrioritizeAndPrefetch: %v", err)
	}
	if !protected[e1.ChunkID] {
		t.Fatal("expected the resident, recently-used chunk to be protected")
	}
}

func TestPrioritizeStopsWhenByteBudgetExhausted(t *testing.T) {
	entity := ident.NewEntityPath("world")
	e1 := entry(entity, 0, 10, 60)
	e2 := entry(entity, 10, 20, 60)
	manifest := NewRrdManifest([]ManifestEntry{e1, e2})

	p := NewChunkPrioritizer(manifest, nil)
	opts := Options{
		Timeline:                      frame,
		TotalUncompressedByteBudget:   100, // fits only one of the two 60-byte chunks
		MaxUncompressedBytesPerBatch:  1000,
		MaxUncompressedBytesInTransit: 1000,
	}
	promises, _, err := p.PrioritizeAndPrefetch(opts, TrackedChunks{}, manifest, map[rrchunk.ChunkID]bool{}, noopFetch)
	if err != nil {
		t.Fatalf("PrioritizeAndPrefetch: %v", err)
	}
	total := 0
	for _, pr := range promises {
		total += len(pr.ChunkIDs)
	}
	if total != 1 {
		t.Fatalf("got %d chunks queued, want 1 (budget exhausted after the first)", total)
	}
}

func TestPrioritizeOversizedChunkFetchedOnlyWhenNothingElseResident(t *testing.T) {
	entity := ident.NewEntityPath("world")
	huge := entry(entity, 0, 10, 5000)
	manifest := NewRrdManifest([]ManifestEntry{huge})

	p := NewChunkPrioritizer(manifest, nil)
	opts := Options{
		Timeline:                      frame,
		TotalUncompressedByteBudget:   1000,
		MaxUncompressedBytesPerBatch:  10000,
		MaxUncompressedBytesInTransit: 10000,
	}
	promises, _, err := p.PrioritizeAndPrefetch(opts, TrackedChunks{}, manifest, map[rrchunk.ChunkID]bool{}, noopFetch)
	if err != nil {
		t.Fatalf("PrioritizeAndPrefetch: %v", err)
	}
	total := 0
	for _, pr := range promises {
		total += len(pr.ChunkIDs)
	}
	if total != 1 {
		t.Fatalf("expected the oversized chunk to be fetched anyway since nothing else is resident, got %d", total)
	}
}

func TestManifestEntryAtOutOfRange(t *testing.T) {
	entity := ident.NewEntityPath("world")
	manifest := NewRrdManifest([]ManifestEntry{entry(entity, 0, 10, 100)})

	if _, err := manifest.EntryAt(1); !errors.Is(err, ErrBadManifestRowIndex) {
		t.Fatalf("got %v, want ErrBadManifestRowIndex", err)
	}
	if _, err := manifest.EntryAt(-1); !errors.Is(err, ErrBadManifestRowIndex) {
		t.Fatalf("got %v, want ErrBadManifestRowIndex", err)
	}
	got, err := manifest.EntryAt(0)
	if err != nil {
		t.Fatalf("EntryAt(0): %v", err)
	}
	if got.ChunkID != manifest.Entries()[0].ChunkID {
		t.Fatal("expected EntryAt(0) to return the first manifest row")
	}
}

func TestPrioritizeUnknownTimeline(t *testing.T) {
	manifest := NewRrdManifest(nil)
	p := NewChunkPrioritizer(manifest, nil)
	other := ident.NewTimeline("never_indexed", ident.Sequence)
	_, _, err := p.PrioritizeAndPrefetch(Options{Timeline: other}, TrackedChunks{}, manifest, nil, noopFetch)
	if !errors.Is(err, ErrUnknownTimeline) {
		t.Fatalf("got %v, want ErrUnknownTimeline", err)
	}
}

func TestResolveAllSurfacesFetchedChunks(t *testing.T) {
	entity := ident.NewEntityPath("world")
	e1 := entry(entity, 0, 10, 10)
	manifest := NewRrdManifest([]ManifestEntry{e1})

	var built *rrchunk.Chunk
	fetch := func(ctx context.Context, ids []rrchunk.ChunkID) ([]*rrchunk.Chunk, error) {
		b := rrchunk.NewBuilder(entity)
		b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 1}, map[ident.ComponentIdentifier]any{ident.Bare("Position3D"): 1.0})
		c, err := b.Build()
		if err != nil {
			return nil, err
		}
		built = c
		return []*rrchunk.Chunk{c}, nil
	}

	promises := []*ChunkPromise{{ChunkIDs: []rrchunk.ChunkID{e1.ChunkID}, fetch: fetch}}
	results, err := ResolveAll(context.Background(), promises)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(results) != 1 || len(results[0]) != 1 || results[0][0] != built {
		t.Fatalf("expected ResolveAll to surface the fetched chunk")
	}
}

func TestResolveAllAndPublishMakesFetchedChunksResident(t *testing.T) {
	entity := ident.NewEntityPath("world", "robot")
	bus := rrevents.NewBus()
	var captured []rrevents.ChunkStoreEvent
	bus.Register(rrevents.SubscriberFunc(func(events []rrevents.ChunkStoreEvent) {
		captured = append(captured, events...)
	}))
	store := rrstore.NewStore("test-store", bus, rrstore.DefaultOptions(), nil)

	var fetchedID rrchunk.ChunkID
	fetch := func(ctx context.Context, ids []rrchunk.ChunkID) ([]*rrchunk.Chunk, error) {
		b := rrchunk.NewBuilder(entity)
		b.AddRow(ident.NewRowID(), ident.TimePoint{frame: 1}, map[ident.ComponentIdentifier]any{ident.Bare("Position3D"): 1.0})
		c, err := b.Build()
		if err != nil {
			return nil, err
		}
		fetchedID = c.ID()
		return []*rrchunk.Chunk{c}, nil
	}
	promises := []*ChunkPromise{{ChunkIDs: []rrchunk.ChunkID{rrchunk.NewChunkID()}, fetch: fetch}}

	if _, err := ResolveAllAndPublish(context.Background(), store, promises); err != nil {
		t.Fatalf("ResolveAllAndPublish: %v", err)
	}

	if _, ok := store.Chunk(fetchedID); !ok {
		t.Fatal("expected the fetched chunk to become resident in the store")
	}
	if len(captured) != 1 || captured[0].Diff.Kind != rrevents.DiffVirtualAddition {
		t.Fatalf("expected a single VirtualAddition event published to the bus, got %v", captured)
	}
}
