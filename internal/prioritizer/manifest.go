// Package prioritizer implements the chunk prioritizer (spec.md §4.4): the
// optional front-end that decides, when a store is backed by a remote
// manifest of not-yet-resident chunks, which virtual chunks to fetch next
// and which resident chunks are protected from garbage collection this
// cycle.
package prioritizer

import (
	"errors"
	"fmt"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrstore"
)

// ErrBadManifestRowIndex is returned by EntryAt for a row index outside the
// manifest's bounds (spec.md §7: "manifest row index out of range").
var ErrBadManifestRowIndex = errors.New("prioritizer: manifest row index out of range")

// ManifestEntry is one row of the manifest: a chunk's identity, location,
// and size, whether or not it is currently resident (spec.md §4.4.1).
type ManifestEntry struct {
	ChunkID           rrchunk.ChunkID
	Entity            ident.EntityPath
	IsStatic          bool
	TimeRanges        map[ident.Timeline]rrstore.TimeRange
	UncompressedBytes uint64
	CompressedBytes   uint64
}

// RrdManifest is the columnar catalog of every known chunk, resident or
// not (spec.md §4.4.1). It is slices-of-struct rather than an Arrow
// RecordBatch, consistent with this system's stance that Arrow
// encoding/decoding is an external collaborator (spec.md §1).
type RrdManifest struct {
	entries []ManifestEntry
	byID    map[rrchunk.ChunkID]int
}

// NewRrdManifest builds a manifest from its entries, indexing them by
// ChunkId for lookup.
func NewRrdManifest(entries []ManifestEntry) *RrdManifest {
	byID := make(map[rrchunk.ChunkID]int, len(entries))
	for i, e := range entries {
		byID[e.ChunkID] = i
	}
	return &RrdManifest{entries: entries, byID: byID}
}

// NewManifestEntryFor builds a ManifestEntry describing a resident chunk,
// deriving its uncompressed/compressed byte sizes from EstimateSizes rather
// than a placeholder constant (spec.md §4.4.1's "uncompressed size,
// compressed size" columns).
func NewManifestEntryFor(c *rrchunk.Chunk, timeline ident.Timeline) (ManifestEntry, error) {
	uncompressed, compressed, err := EstimateSizes(c)
	if err != nil {
		return ManifestEntry{}, err
	}
	entry := ManifestEntry{
		ChunkID:           c.ID(),
		Entity:            c.Entity(),
		IsStatic:          c.IsStatic(),
		UncompressedBytes: uncompressed,
		CompressedBytes:   compressed,
	}
	if !c.IsStatic() {
		lo, hi, ok := c.TimeRangeOn(timeline)
		if ok {
			entry.TimeRanges = map[ident.Timeline]rrstore.TimeRange{timeline: {Min: lo, Max: hi}}
		}
	}
	return entry, nil
}

// Lookup returns the manifest row for id, if any.
func (m *RrdManifest) Lookup(id rrchunk.ChunkID) (ManifestEntry, bool) {
	i, ok := m.byID[id]
	if !ok {
		return ManifestEntry{}, false
	}
	return m.entries[i], true
}

// Entries returns every row in the manifest.
func (m *RrdManifest) Entries() []ManifestEntry {
	return m.entries
}

// EntryAt returns the manifest row at position i, bounds-checked against
// the manifest's row count (spec.md §7's BadManifestRowIndex: "manifest row
// index out of range"). In this slices-of-struct manifest model there is no
// separate i32/usize representation to overflow, so the only way this
// error kind is triggered here is a caller-supplied index outside
// [0, len(Entries())).
func (m *RrdManifest) EntryAt(i int) (ManifestEntry, error) {
	if i < 0 || i >= len(m.entries) {
		return ManifestEntry{}, fmt.Errorf("%w: index %d, manifest has %d entries", ErrBadManifestRowIndex, i, len(m.entries))
	}
	return m.entries[i], nil
}
