// Package rrchunk implements the immutable columnar batch described in
// spec.md §3.2: a Chunk carries one row-id column, zero or more per-timeline
// index columns, and one data column per logged component.
package rrchunk

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// chunkIDEncoding matches the teacher's ChunkID encoding: base32hex
// (RFC 4648) lowercase without padding, preserving lexicographic sort
// order by creation time.
var chunkIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// ChunkID uniquely identifies a Chunk. Ported directly from the teacher's
// chunk.ChunkID (a UUIDv7 whose string form sorts by creation time).
type ChunkID [16]byte

// NewChunkID creates a ChunkID from a new UUIDv7.
func NewChunkID() ChunkID {
	return ChunkID(uuid.Must(uuid.NewV7()))
}

// ParseChunkID parses a 26-character base32hex string into a ChunkID.
func ParseChunkID(value string) (ChunkID, error) {
	if len(value) != 26 {
		return ChunkID{}, fmt.Errorf("invalid chunk id length: %d (want 26)", len(value))
	}
	decoded, err := chunkIDEncoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		return ChunkID{}, fmt.Errorf("invalid chunk id: %w", err)
	}
	var id ChunkID
	copy(id[:], decoded)
	return id, nil
}

// String returns the 26-character lowercase base32hex representation.
func (id ChunkID) String() string {
	return strings.ToLower(chunkIDEncoding.EncodeToString(id[:]))
}

// IsZero reports whether id is the zero value.
func (id ChunkID) IsZero() bool { return id == ChunkID{} }

// Compare returns -1, 0 or 1 as a sorts before, equal to, or after b,
// lexicographically on the raw bytes (time-major, since UUIDv7 places the
// timestamp in the leading bytes). Used to break minTime ties in the
// per-component ordered chunk index.
func (id ChunkID) Compare(other ChunkID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts strictly before other.
func (id ChunkID) Less(other ChunkID) bool { return id.Compare(other) < 0 }
