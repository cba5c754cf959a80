// Package rrstore implements the append-only chunk store (spec.md §3.3,
// §4.1): chunks keyed by (entity, timeline, component) in ordered sets,
// a static authoritative-chunk map, single-neighbor compaction, and
// recent-use-driven garbage collection.
package rrstore

import (
	"log/slog"
	"sync"

	"github.com/google/btree"
	"github.com/hashicorp/golang-lru"

	"rerun-chunkstore/internal/config"
	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/logging"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
)

// Options holds the process-wide tunables read once at store construction
// (spec.md §4.1.2), mirroring the teacher's memory.Config: a small struct
// with explicit defaults applied by the constructor rather than a global
// configuration singleton.
type Options struct {
	// EnableChangelog gates whether Insert/GC publish events to the bus.
	// When false, subscribers see nothing (spec.md §4.1.2).
	EnableChangelog bool

	ChunkMaxRows           int
	ChunkMaxRowsIfUnsorted int
	ChunkMaxBytes          int64
}

// DefaultOptions reads compaction thresholds from the environment via
// internal/config and enables the changelog by default.
func DefaultOptions() Options {
	cfg := config.Load()
	return Options{
		EnableChangelog:        true,
		ChunkMaxRows:           cfg.ChunkMaxRows,
		ChunkMaxRowsIfUnsorted: cfg.ChunkMaxRowsIfUnsorted,
		ChunkMaxBytes:          cfg.ChunkMaxBytes,
	}
}

// TimeRange is an inclusive [Min, Max] span on one timeline.
type TimeRange struct {
	Min ident.TimeInt
	Max ident.TimeInt
}

// chunkTimeEntry is the btree payload: a chunk ordered by its minimum time
// on the timeline the owning tree indexes, tie-broken by ChunkID so two
// chunks sharing a minimum time still total-order.
type chunkTimeEntry struct {
	MinTime ident.TimeInt
	ID      rrchunk.ChunkID
}

func chunkTimeEntryLess(a, b chunkTimeEntry) bool {
	if a.MinTime != b.MinTime {
		return a.MinTime < b.MinTime
	}
	return a.ID.Less(b.ID)
}

// Store holds the four structures of spec.md §3.3: per-component ordered
// chunk sets, the static authoritative map, chunk storage, and the
// time-range secondary index.
type Store struct {
	mu sync.Mutex

	id     rrevents.StoreID
	bus    *rrevents.Bus
	opts   Options
	logger *slog.Logger

	generation uint64

	chunks             map[rrchunk.ChunkID]*rrchunk.Chunk
	static             map[string]rrchunk.ChunkID
	perComponent       map[string]*btree.BTreeG[chunkTimeEntry]
	timeRangePerChunk  map[rrchunk.ChunkID]map[ident.Timeline]TimeRange
	keysByChunk        map[rrchunk.ChunkID]map[string]chunkTimeEntry
	componentsByEntity map[string]map[string]ident.ComponentIdentifier

	seenRows map[ident.RowID]struct{}

	// recentUse tracks chunk access recency; GC evicts starting from the
	// oldest (lowest recent-use) entry first (spec.md §5).
	recentUse *lru.Cache
}

// NewStore constructs a Store. bus may be nil, in which case events are
// computed but never published (equivalent to EnableChangelog=false for
// delivery purposes, though the returned event list from Insert/GC is
// still populated).
func NewStore(id rrevents.StoreID, bus *rrevents.Bus, opts Options, logger *slog.Logger) *Store {
	recent, err := lru.New(1 << 20) // generous cap; GC drives real eviction
	if err != nil {
		// Only returns an error for a non-positive size, which is never the
		// case here; a panic would indicate a coding mistake, not bad input.
		recent, _ = lru.New(1)
	}
	return &Store{
		id:                 id,
		bus:                bus,
		opts:               opts,
		logger:             logging.Default(logger).With("component", "chunk-store", "store_id", string(id)),
		chunks:             make(map[rrchunk.ChunkID]*rrchunk.Chunk),
		static:             make(map[string]rrchunk.ChunkID),
		perComponent:       make(map[string]*btree.BTreeG[chunkTimeEntry]),
		timeRangePerChunk:  make(map[rrchunk.ChunkID]map[ident.Timeline]TimeRange),
		keysByChunk:        make(map[rrchunk.ChunkID]map[string]chunkTimeEntry),
		componentsByEntity: make(map[string]map[string]ident.ComponentIdentifier),
		seenRows:           make(map[ident.RowID]struct{}),
		recentUse:          recent,
	}
}

func staticKey(entity ident.EntityPath, comp ident.ComponentIdentifier) string {
	return entity.Key() + "\x1f" + comp.Key()
}

func perComponentKey(entity ident.EntityPath, t ident.Timeline, comp ident.ComponentIdentifier) string {
	return entity.Key() + "\x1f" + t.String() + "\x1f" + comp.Key()
}

func (s *Store) makeEvent(d rrevents.Diff) rrevents.ChunkStoreEvent {
	return rrevents.ChunkStoreEvent{StoreID: s.id, Generation: s.generation, Diff: d}
}

func (s *Store) registerComponentsLocked(c *rrchunk.Chunk) {
	key := c.Entity().Key()
	set, ok := s.componentsByEntity[key]
	if !ok {
		set = make(map[string]ident.ComponentIdentifier)
		s.componentsByEntity[key] = set
	}
	for _, comp := range c.Components() {
		if chunkHasComponentData(c, comp) {
			set[comp.Key()] = comp
		}
	}
}

func chunkHasComponentData(c *rrchunk.Chunk, comp ident.ComponentIdentifier) bool {
	for i := 0; i < c.NumRows(); i++ {
		if c.HasComponentAtRow(comp, i) {
			return true
		}
	}
	return false
}

func maxRowForComponent(c *rrchunk.Chunk, comp ident.ComponentIdentifier) (ident.RowID, bool) {
	var best ident.RowID
	found := false
	for i := 0; i < c.NumRows(); i++ {
		if !c.HasComponentAtRow(comp, i) {
			continue
		}
		r := c.RowID(i)
		if !found || best.Less(r) {
			best = r
			found = true
		}
	}
	return best, found
}

// AllComponentsForEntity returns every component ever observed for entity,
// static or temporal, across all timelines (spec.md §4.1.3).
func (s *Store) AllComponentsForEntity(entity ident.EntityPath) []ident.ComponentIdentifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.componentsByEntity[entity.Key()]
	if !ok {
		return nil
	}
	out := make([]ident.ComponentIdentifier, 0, len(set))
	for _, comp := range set {
		out = append(out, comp)
	}
	return out
}

// ChunksFor returns the ordered set of chunks carrying component on
// timeline for entity, ordered by minimum time (spec.md §4.1.3).
func (s *Store) ChunksFor(entity ident.EntityPath, timeline ident.Timeline, comp ident.ComponentIdentifier) []*rrchunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	bt, ok := s.perComponent[perComponentKey(entity, timeline, comp)]
	if !ok {
		return nil
	}
	var out []*rrchunk.Chunk
	bt.Ascend(func(entry chunkTimeEntry) bool {
		if c, ok := s.chunks[entry.ID]; ok {
			out = append(out, c)
			s.touchLocked(entry.ID)
		}
		return true
	})
	return out
}

// TimeRange returns the union of time ranges of all chunks carrying an
// index column on timeline (spec.md §4.1.3).
func (s *Store) TimeRange(timeline ident.Timeline) (TimeRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tr TimeRange
	found := false
	for _, byTimeline := range s.timeRangePerChunk {
		r, ok := byTimeline[timeline]
		if !ok {
			continue
		}
		if !found {
			tr = r
			found = true
			continue
		}
		if r.Min < tr.Min {
			tr.Min = r.Min
		}
		if r.Max > tr.Max {
			tr.Max = r.Max
		}
	}
	return tr, found
}

// Chunk returns the resident chunk with the given id, if any, and marks it
// as recently used.
func (s *Store) Chunk(id rrchunk.ChunkID) (*rrchunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if ok {
		s.touchLocked(id)
	}
	return c, ok
}

// StaticChunkFor returns the current authoritative static chunk for
// (entity, component), if one exists (spec.md §4.2.1 step 1).
func (s *Store) StaticChunkFor(entity ident.EntityPath, comp ident.ComponentIdentifier) (*rrchunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.static[staticKey(entity, comp)]
	if !ok {
		return nil, false
	}
	c, ok := s.chunks[id]
	if ok {
		s.touchLocked(id)
	}
	return c, ok
}

func (s *Store) touchLocked(id rrchunk.ChunkID) {
	s.recentUse.Add(id, struct{}{})
}

// TotalBytes returns the current estimated in-memory size of all resident
// chunks, static and temporal.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytesLocked()
}

func (s *Store) totalBytesLocked() int64 {
	var total int64
	for _, c := range s.chunks {
		total += c.EstimatedBytes()
	}
	return total
}
