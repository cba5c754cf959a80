// Package rrevents implements the store subscriber bus: the contract
// through which derived indices (visualizers, query caches) receive
// ordered, additive updates from a chunk store.
package rrevents

import (
	"rerun-chunkstore/internal/rrchunk"
)

// StoreID identifies the store a batch of events originated from.
type StoreID string

// DiffKind tags the variant carried by a Diff.
type DiffKind int

const (
	// DiffAddition carries a freshly-ingested or compacted chunk.
	DiffAddition DiffKind = iota
	// DiffVirtualAddition carries manifest-only metadata for chunks fetched
	// by the prioritizer, with no chunk payload attached.
	DiffVirtualAddition
	// DiffDeletion retires a chunk, e.g. one merged away by compaction.
	DiffDeletion
)

func (k DiffKind) String() string {
	switch k {
	case DiffAddition:
		return "Addition"
	case DiffVirtualAddition:
		return "VirtualAddition"
	case DiffDeletion:
		return "Deletion"
	default:
		return "Unknown"
	}
}

// Diff is the tagged union of event.md §4.3.1: Addition carries both the
// light metadata projection and the chunk itself, VirtualAddition carries
// metadata only (the chunk has no resident payload), Deletion retires a
// chunk by id.
type Diff struct {
	Kind    DiffKind
	Meta    rrchunk.ChunkMeta   // Addition only
	Chunk   *rrchunk.Chunk      // Addition only
	ChunkID rrchunk.ChunkID     // Addition, Deletion
	Metas   []rrchunk.ChunkMeta // VirtualAddition: one manifest entry per fetched chunk
}

// Addition builds a Diff for a freshly-ingested or compacted chunk.
func Addition(c *rrchunk.Chunk) Diff {
	return Diff{Kind: DiffAddition, Meta: c.Meta(), Chunk: c, ChunkID: c.ID()}
}

// VirtualAddition builds a Diff for chunks the prioritizer fetched, known
// only by manifest metadata (spec.md §4.4.4).
func VirtualAddition(metas []rrchunk.ChunkMeta) Diff {
	return Diff{Kind: DiffVirtualAddition, Metas: metas}
}

// Deletion builds a Diff retiring a chunk by id.
func Deletion(id rrchunk.ChunkID) Diff {
	return Diff{Kind: DiffDeletion, ChunkID: id}
}

// ChunkStoreEvent is one entry in a batch delivered to subscribers
// (spec.md §4.3.1).
type ChunkStoreEvent struct {
	StoreID    StoreID
	Generation uint64
	Diff       Diff
}

// Subscriber receives ordered batches of events and maintains its own
// derived state (spec.md §4.3). AsAny is the typed-downcast escape hatch
// spec.md §6.3 requires so a subscriber's owner can reach its concrete type.
type Subscriber interface {
	OnEvents(events []ChunkStoreEvent)
	AsAny() any
}

// Handle is the opaque, process-lived registration token spec.md §6.3
// returns from Register.
type Handle int

// SubscriberFunc adapts an ordinary function to the Subscriber interface,
// following the teacher's RotationPolicyFunc/RetentionPolicyFunc adapter
// convention.
type SubscriberFunc func(events []ChunkStoreEvent)

func (f SubscriberFunc) OnEvents(events []ChunkStoreEvent) { f(events) }
func (f SubscriberFunc) AsAny() any                        { return f }

// Bus dispatches event batches to registered subscribers, synchronously
// and in registration order, from inside the store's write path (spec.md
// §4.3.2, §5: "dispatch is lock-free after registration" — the subscriber
// list itself is append-only and never mutated after Register returns).
// This generalizes the teacher's Orchestrator convention of registering
// consumers before Start() and serializing dispatch under the write path.
type Bus struct {
	subscribers []Subscriber
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds a subscriber and returns its handle. Registration is
// expected at process start, before any Publish call; the bus does not
// support unregistering (spec.md §5: "never mutated thereafter").
func (b *Bus) Register(s Subscriber) Handle {
	b.subscribers = append(b.subscribers, s)
	return Handle(len(b.subscribers) - 1)
}

// Publish delivers events to every registered subscriber, in registration
// order, synchronously. Callers (rrstore.Store.Insert) invoke this before
// returning, per spec.md §4.3.2/§5's linearizability guarantee.
func (b *Bus) Publish(events []ChunkStoreEvent) {
	if len(events) == 0 {
		return
	}
	for _, s := range b.subscribers {
		s.OnEvents(events)
	}
}
