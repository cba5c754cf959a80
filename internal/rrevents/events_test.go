package rrevents

import (
	"testing"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
)

type recordingSubscriber struct {
	received [][]ChunkStoreEvent
}

func (r *recordingSubscriber) OnEvents(events []ChunkStoreEvent) {
	r.received = append(r.received, events)
}

func (r *recordingSubscriber) AsAny() any { return r }

func newTestChunk(t *testing.T) *rrchunk.Chunk {
	t.Helper()
	b := rrchunk.NewBuilder(ident.NewEntityPath("world"))
	b.AddRow(ident.NewRowID(), ident.TimePoint{ident.NewTimeline("frame", ident.Sequence): 1}, map[ident.ComponentIdentifier]any{
		ident.Bare("Position3D"): 1.0,
	})
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	for i := range 3 {
		i := i
		bus.Register(SubscriberFunc(func([]ChunkStoreEvent) { order = append(order, i) }))
	}
	bus.Publish([]ChunkStoreEvent{{StoreID: "s", Generation: 1, Diff: Deletion(rrchunk.ChunkID{})}})
	for i, v := range order {
		if i != v {
			t.Fatalf("expected registration order %v, got %v", []int{0, 1, 2}, order)
		}
	}
}

func TestBusSkipsPublishOnEmptyBatch(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{}
	bus.Register(sub)
	bus.Publish(nil)
	if len(sub.received) != 0 {
		t.Fatal("expected no delivery for an empty event batch")
	}
}

func TestAdditionDiffCarriesMetaAndChunk(t *testing.T) {
	c := newTestChunk(t)
	d := Addition(c)
	if d.Kind != DiffAddition {
		t.Fatalf("got kind %v, want DiffAddition", d.Kind)
	}
	if d.Chunk != c {
		t.Fatal("expected Addition to carry the chunk pointer")
	}
	if d.Meta.ID != c.ID() {
		t.Fatal("expected Addition's metadata to describe the same chunk")
	}
}

func TestVirtualAdditionCarriesNoChunkPayload(t *testing.T) {
	meta := newTestChunk(t).Meta()
	d := VirtualAddition([]rrchunk.ChunkMeta{meta})
	if d.Chunk != nil {
		t.Fatal("VirtualAddition must not carry a resident chunk")
	}
	if len(d.Metas) != 1 {
		t.Fatalf("got %d metas, want 1", len(d.Metas))
	}
}
