package prioritizer

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/klauspost/compress/zstd"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
)

// sortTimelines orders timelines by name then type so rawSnapshot is
// deterministic across calls against the same chunk.
func sortTimelines(timelines []ident.Timeline) {
	sort.Slice(timelines, func(i, j int) bool {
		if timelines[i].Name != timelines[j].Name {
			return timelines[i].Name < timelines[j].Name
		}
		return timelines[i].Typ < timelines[j].Typ
	})
}

// EstimateSizes derives the uncompressed/compressed byte pair a manifest
// would carry for chunk (spec.md §4.4.1, §6.2): a raw byte snapshot of its
// row ids and timeline columns, zstd-compressed the way the teacher
// compresses its own chunk files (chunk/file/compress.go), run back through
// the compressor to get a realistic ratio instead of a placeholder constant.
// Component payloads are opaque to this package (spec.md §1) and are not
// part of the snapshot; only row ids and timeline columns, which dominate a
// chunk's on-disk footprint for the time-series data this store indexes,
// are measured.
func EstimateSizes(c *rrchunk.Chunk) (uncompressed, compressed uint64, err error) {
	raw, err := rawSnapshot(c)
	if err != nil {
		return 0, 0, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, 0, err
	}
	defer enc.Close()
	out := enc.EncodeAll(raw, nil)
	return uint64(len(raw)), uint64(len(out)), nil
}

// rawSnapshot serializes a chunk's row ids and timeline columns into a flat
// byte buffer, ordered deterministically (row ids first, then timelines in
// name order) so two calls against an unchanged chunk produce identical
// bytes.
func rawSnapshot(c *rrchunk.Chunk) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Grow(c.NumRows() * 16)
	for i := 0; i < c.NumRows(); i++ {
		row := c.RowID(i)
		buf.Write(row[:])
	}

	timelines := c.Timelines()
	sortTimelines(timelines)
	for _, t := range timelines {
		tc, ok := c.TimeColumn(t)
		if !ok {
			continue
		}
		for _, v := range tc.Values {
			if err := binary.Write(buf, binary.LittleEndian, int64(v)); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}
