package ident

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// rowIDEncoding mirrors the teacher's ChunkID encoding: base32hex (RFC 4648)
// lowercase without padding, which preserves lexicographic sort order.
var rowIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// RowID is a monotonically-increasing, globally-unique 128-bit identifier
// (spec.md §3.1, §9): the upper bits embed a monotonic time-based tick
// (via UUIDv7), the lower bits are random, giving total order with no
// coordination between producers. Two rows with the same RowID are
// semantically the same row (spec.md §3.1).
type RowID [16]byte

// NewRowID draws a new RowID from a UUIDv7-based generator: a 48-bit
// millisecond timestamp followed by random bits, monotonic within a
// producer and globally unique without coordination — exactly the
// construction the teacher uses for ChunkID (chunk.NewChunkID), applied
// here at row rather than chunk granularity.
func NewRowID() RowID {
	return RowID(uuid.Must(uuid.NewV7()))
}

// RowIDMax is the greatest possible RowID, used as the upper tie-break
// bound in latest-at queries (spec.md §4.2.1: "(at, RowID::MAX)").
var RowIDMax = func() RowID {
	var id RowID
	for i := range id {
		id[i] = 0xff
	}
	return id
}()

// Compare returns -1, 0 or 1 as a sorts before, equal to, or after b.
// RowIDs compare lexicographically on their raw bytes, which is
// time-major because UUIDv7 places the timestamp in the leading bytes.
func (a RowID) Compare(b RowID) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a sorts strictly before b.
func (a RowID) Less(b RowID) bool { return a.Compare(b) < 0 }

// ParseRowID parses a 26-character base32hex string into a RowID.
func ParseRowID(s string) (RowID, error) {
	if len(s) != 26 {
		return RowID{}, fmt.Errorf("invalid row id length: %d (want 26)", len(s))
	}
	decoded, err := rowIDEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return RowID{}, fmt.Errorf("invalid row id: %w", err)
	}
	var id RowID
	copy(id[:], decoded)
	return id, nil
}

// String returns the 26-character lowercase base32hex representation.
func (a RowID) String() string {
	return strings.ToLower(rowIDEncoding.EncodeToString(a[:]))
}

// Time returns the creation time encoded in the UUIDv7 RowID.
func (a RowID) Time() time.Time {
	ms := int64(a[0])<<40 | int64(a[1])<<32 | int64(a[2])<<24 |
		int64(a[3])<<16 | int64(a[4])<<8 | int64(a[5])
	return time.UnixMilli(ms)
}
