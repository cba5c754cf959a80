package prioritizer

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/logging"
	"rerun-chunkstore/internal/rrchunk"
)

// ErrUnknownTimeline is returned by PrioritizeAndPrefetch for a timeline
// the manifest never indexed, provided the manifest also lists no static
// chunks; a manifest with static chunks accepts any timeline.
var ErrUnknownTimeline = errors.New("prioritizer: unknown timeline")

// Options configures one prioritization tick (spec.md §4.4.1).
type Options struct {
	Timeline                      ident.Timeline
	StartTime                     ident.TimeInt
	TotalUncompressedByteBudget   uint64
	MaxUncompressedBytesPerBatch  uint64
	MaxUncompressedBytesInTransit uint64
}

// TrackedChunks names the chunks a store observed since the last
// prioritization tick (spec.md §4.4.1): Used is a chunk a query actually
// read; Missing is one a query referenced but found unresident. The store
// itself is responsible for this bookkeeping (a "store-side counter" per
// spec.md); the prioritizer only consumes it.
type TrackedChunks struct {
	Used    []rrchunk.ChunkID
	Missing []rrchunk.ChunkID
}

// ChunkPrioritizer decides, on each opportunity tick, which virtual chunks
// to fetch and which resident chunks are protected from eviction this
// cycle (spec.md §4.4), ported from the original source's
// chunk_prioritizer.rs.
type ChunkPrioritizer struct {
	mu     sync.Mutex
	logger *slog.Logger

	staticChunkIDs map[rrchunk.ChunkID]bool
	byTimeline     map[ident.Timeline][]ManifestEntry

	inLimitChunks  map[rrchunk.ChunkID]bool
	checkedVirtual map[rrchunk.ChunkID]bool
}

// NewChunkPrioritizer indexes manifest by timeline (ascending minimum time)
// and by static/temporal status.
func NewChunkPrioritizer(manifest *RrdManifest, logger *slog.Logger) *ChunkPrioritizer {
	p := &ChunkPrioritizer{
		logger:         logging.Default(logger).With("component", "chunk-prioritizer"),
		staticChunkIDs: make(map[rrchunk.ChunkID]bool),
		byTimeline:     make(map[ident.Timeline][]ManifestEntry),
		inLimitChunks:  make(map[rrchunk.ChunkID]bool),
		checkedVirtual: make(map[rrchunk.ChunkID]bool),
	}
	p.indexManifest(manifest)
	return p
}

func (p *ChunkPrioritizer) indexManifest(m *RrdManifest) {
	for i := 0; i < len(m.Entries()); i++ {
		e, err := m.EntryAt(i)
		if err != nil {
			// Unreachable for i within [0, len(Entries())), which this loop
			// guarantees; kept as a defensive bound check on the canonical
			// row accessor rather than raw slice indexing (spec.md §7).
			continue
		}
		if e.IsStatic {
			p.staticChunkIDs[e.ChunkID] = true
			continue
		}
		for t := range e.TimeRanges {
			p.byTimeline[t] = append(p.byTimeline[t], e)
		}
	}
	for t, entries := range p.byTimeline {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].TimeRanges[t].Min < entries[j].TimeRanges[t].Min
		})
	}
}

// priorityOrder names candidate chunks in the order of spec.md §4.4.2's
// five buckets. Duplicates across buckets are expected; the caller
// de-duplicates as it consumes the list.
func (p *ChunkPrioritizer) priorityOrder(timeline ident.Timeline, startTime ident.TimeInt, tracked TrackedChunks) []rrchunk.ChunkID {
	var order []rrchunk.ChunkID
	order = append(order, tracked.Used...)
	order = append(order, tracked.Missing...)
	for id := range p.staticChunkIDs {
		order = append(order, id)
	}
	entries := p.byTimeline[timeline]
	for _, e := range entries {
		if e.TimeRanges[timeline].Max >= startTime {
			order = append(order, e.ChunkID)
		}
	}
	for _, e := range entries {
		if e.TimeRanges[timeline].Min < startTime {
			order = append(order, e.ChunkID)
		}
	}
	return order
}

// PrioritizeAndPrefetch implements spec.md §4.4.2-4.4.4: it walks
// candidate chunks in priority order, protecting resident ones from
// eviction and batching unresident ones for fetching, until either the
// total byte budget or the in-transit budget is exhausted. resident
// reports whether a chunk id is currently resident in the store.
func (p *ChunkPrioritizer) PrioritizeAndPrefetch(opts Options, tracked TrackedChunks, manifest *RrdManifest, resident map[rrchunk.ChunkID]bool, fetch Fetcher) ([]*ChunkPromise, map[rrchunk.ChunkID]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byTimeline[opts.Timeline]; !ok && len(p.staticChunkIDs) == 0 {
		return nil, nil, ErrUnknownTimeline
	}

	p.inLimitChunks = make(map[rrchunk.ChunkID]bool)
	p.checkedVirtual = make(map[rrchunk.ChunkID]bool)

	batcher := newChunkBatcher(fetch, opts.MaxUncompressedBytesPerBatch, opts.MaxUncompressedBytesInTransit)
	remaining := opts.TotalUncompressedByteBudget
	order := p.priorityOrder(opts.Timeline, opts.StartTime, tracked)

	seen := make(map[rrchunk.ChunkID]bool, len(order))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true

		entry, ok := manifest.Lookup(id)
		if !ok {
			continue
		}

		if resident[id] {
			if p.inLimitChunks[id] {
				continue
			}
			remaining = saturatingSub(remaining, entry.UncompressedBytes)
			if remaining == 0 {
				break
			}
			p.inLimitChunks[id] = true
			continue
		}

		if p.checkedVirtual[id] {
			continue
		}

		if entry.UncompressedBytes > opts.TotalUncompressedByteBudget {
			if len(p.inLimitChunks) > 0 {
				// Some other chunk already fits; skip this oversized one
				// rather than starve everything else (spec.md §4.4.4).
				continue
			}
			p.logger.Warn("chunk exceeds the uncompressed byte budget, fetching anyway because nothing else is resident",
				"chunk_id", id.String(), "entity", entry.Entity.String(), "uncompressed_bytes", entry.UncompressedBytes)
			// This one chunk consumes the entire budget by itself; fetch it
			// and stop, there's no room left for anything else this tick.
			if batcher.tryFetch(entry) {
				p.checkedVirtual[id] = true
			}
			break
		}

		remaining = saturatingSub(remaining, entry.UncompressedBytes)
		if remaining == 0 {
			break
		}
		if !batcher.tryFetch(entry) {
			break
		}
		p.checkedVirtual[id] = true
	}

	protected := make(map[rrchunk.ChunkID]bool, len(p.inLimitChunks))
	for id := range p.inLimitChunks {
		protected[id] = true
	}
	return batcher.finish(), protected, nil
}

// TakeProtectedChunks returns the chunks marked protected by the most
// recent PrioritizeAndPrefetch call (spec.md §4.4.3).
func (p *ChunkPrioritizer) TakeProtectedChunks() map[rrchunk.ChunkID]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[rrchunk.ChunkID]bool, len(p.inLimitChunks))
	for id := range p.inLimitChunks {
		out[id] = true
	}
	return out
}
