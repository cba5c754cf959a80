package prioritizer

import (
	"context"

	"rerun-chunkstore/internal/rrchunk"
)

// Fetcher fetches the chunk payloads for a batch of manifest entries. The
// caller of PrioritizeAndPrefetch supplies one; this package ships no
// network transport of its own (spec.md §1 non-goal: "the network transport
// that delivers chunks or manifests").
type Fetcher func(ctx context.Context, ids []rrchunk.ChunkID) ([]*rrchunk.Chunk, error)

// ChunkPromise is one in-flight batch request (spec.md §4.4.3), ported
// from the original source's ChunkPromise/ChunkPromiseBatch.
type ChunkPromise struct {
	ChunkIDs          []rrchunk.ChunkID
	UncompressedBytes uint64
	CompressedBytes   uint64
	fetch             Fetcher
}

// Resolve runs the promise's fetcher. Exposed so callers (ResolveAll) can
// resolve many promises concurrently.
func (p *ChunkPromise) Resolve(ctx context.Context) ([]*rrchunk.Chunk, error) {
	return p.fetch(ctx, p.ChunkIDs)
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// chunkBatcher accumulates manifest entries into ChunkPromise batches,
// sealing one whenever adding another entry would exceed
// max_uncompressed_bytes_per_batch (spec.md §4.4.2), ported from the
// original source's ChunkBatcher.
type chunkBatcher struct {
	fetch Fetcher

	maxPerBatch        uint64
	remainingInTransit uint64

	pendingIDs          []rrchunk.ChunkID
	uncompressedInBatch uint64
	compressedInBatch   uint64

	promises []*ChunkPromise
}

func newChunkBatcher(fetch Fetcher, maxPerBatch, inTransitBudget uint64) *chunkBatcher {
	return &chunkBatcher{
		fetch:              fetch,
		maxPerBatch:        maxPerBatch,
		remainingInTransit: inTransitBudget,
	}
}

// tryFetch enqueues entry for fetching, sealing the current batch first if
// it's already full. Reports false if the in-transit budget is exhausted,
// meaning the caller should stop looking for more work this tick.
func (b *chunkBatcher) tryFetch(entry ManifestEntry) bool {
	if b.remainingInTransit == 0 {
		return false
	}
	if b.maxPerBatch != 0 && b.uncompressedInBatch+entry.UncompressedBytes > b.maxPerBatch {
		b.seal()
	}
	b.pendingIDs = append(b.pendingIDs, entry.ChunkID)
	b.uncompressedInBatch += entry.UncompressedBytes
	b.compressedInBatch += entry.CompressedBytes

	b.remainingInTransit = saturatingSub(b.remainingInTransit, entry.UncompressedBytes)
	return true
}

func (b *chunkBatcher) seal() {
	if len(b.pendingIDs) == 0 {
		return
	}
	b.promises = append(b.promises, &ChunkPromise{
		ChunkIDs:          b.pendingIDs,
		UncompressedBytes: b.uncompressedInBatch,
		CompressedBytes:   b.compressedInBatch,
		fetch:             b.fetch,
	})
	b.pendingIDs = nil
	b.uncompressedInBatch = 0
	b.compressedInBatch = 0
}

// finish seals any partially-filled batch and returns every promise built
// this tick.
func (b *chunkBatcher) finish() []*ChunkPromise {
	b.seal()
	return b.promises
}
