package rrstore

import (
	"errors"
	"fmt"
	"sort"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
)

// ErrNilChunk is returned by Insert for a nil chunk pointer.
var ErrNilChunk = errors.New("rrstore: nil chunk")

// compactionCandidate names one (entity, timeline, component) bucket a
// freshly-inserted chunk was just registered under, carrying enough
// context to attempt a single-neighbor compaction (spec.md §4.1.1 step 4).
type compactionCandidate struct {
	Key      string
	Timeline ident.Timeline
	Entry    chunkTimeEntry
}

// Insert ingests chunk, implementing spec.md §4.1.1 steps 1-5: RowId
// dedup, static authoritative-chunk resolution, temporal insertion,
// single-neighbor compaction, then deletions-before-additions event
// delivery. Malformed chunks never reach Insert: rrchunk.Builder.Build
// rejects them with rrchunk.ErrBadChunk. Insert itself fails only for a nil
// chunk (ErrNilChunk); on error the store is unchanged and no events are
// emitted.
func (s *Store) Insert(c *rrchunk.Chunk) ([]rrevents.ChunkStoreEvent, error) {
	if c == nil {
		return nil, ErrNilChunk
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filtered, anyNew := s.dedupLocked(c)
	if !anyNew {
		return nil, nil
	}

	s.chunks[filtered.ID()] = filtered
	s.touchLocked(filtered.ID())
	s.registerComponentsLocked(filtered)

	var deletions []rrevents.ChunkStoreEvent
	added := filtered

	if filtered.IsStatic() {
		s.applyStaticLocked(filtered)
	} else {
		candidates := s.insertTemporalLocked(filtered)
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key < candidates[j].Key })
			if merged, retired, ok := s.tryCompactLocked(candidates[0], filtered); ok {
				s.generation++
				for _, id := range retired {
					s.retireChunkLocked(id)
					deletions = append(deletions, s.makeEvent(rrevents.Deletion(id)))
				}
				s.chunks[merged.ID()] = merged
				s.touchLocked(merged.ID())
				s.registerComponentsLocked(merged)
				s.insertTemporalLocked(merged)
				added = merged
			}
		}
	}

	s.generation++
	events := append(deletions, s.makeEvent(rrevents.Addition(added)))
	for i := range events {
		events[i].Generation = s.generation
	}
	if s.opts.EnableChangelog && s.bus != nil {
		s.bus.Publish(events)
	}
	return events, nil
}

// dedupLocked drops rows whose RowId is already present in the store
// (spec.md §4.1.1 step 1). Returns the original chunk unchanged when none
// of its rows are duplicates, a rebuilt projection when some are, or
// (nil, false) when all rows are duplicates.
func (s *Store) dedupLocked(c *rrchunk.Chunk) (*rrchunk.Chunk, bool) {
	keep := make([]int, 0, c.NumRows())
	for i := 0; i < c.NumRows(); i++ {
		if _, dup := s.seenRows[c.RowID(i)]; !dup {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, false
	}
	for _, i := range keep {
		s.seenRows[c.RowID(i)] = struct{}{}
	}
	if len(keep) == c.NumRows() {
		return c, true
	}
	return projectChunk(c, keep), true
}

// projectChunk rebuilds a chunk containing only the rows at the given
// indices, preserving their timeline coordinates and component values.
func projectChunk(c *rrchunk.Chunk, rows []int) *rrchunk.Chunk {
	b := rrchunk.NewBuilder(c.Entity())
	timelines := c.Timelines()
	comps := c.Components()
	for _, i := range rows {
		var point ident.TimePoint
		if len(timelines) > 0 {
			point = make(ident.TimePoint, len(timelines))
			for _, t := range timelines {
				v, _ := c.TimeAtRow(t, i)
				point[t] = v
			}
		}
		values := make(map[ident.ComponentIdentifier]any, len(comps))
		for _, comp := range comps {
			if c.HasComponentAtRow(comp, i) {
				values[comp] = c.ValueAtRow(comp, i)
			}
		}
		b.AddRow(c.RowID(i), point, values)
	}
	out, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("rrstore: rebuilding a deduplicated subset of an already-valid chunk failed: %v", err))
	}
	return out
}

// applyStaticLocked resolves static authoritative-chunk overrides (spec.md
// §4.1.1 step 2): for each component the chunk carries, it becomes the new
// authoritative chunk for (entity, component) iff its maximum containing
// RowId exceeds the current authoritative chunk's maximum RowId for that
// component. Older static data is shadowed, not deleted, until GC.
func (s *Store) applyStaticLocked(c *rrchunk.Chunk) {
	for _, comp := range c.Components() {
		candidateMax, ok := maxRowForComponent(c, comp)
		if !ok {
			continue
		}
		key := staticKey(c.Entity(), comp)
		curID, exists := s.static[key]
		if !exists {
			s.static[key] = c.ID()
			continue
		}
		curChunk, ok := s.chunks[curID]
		if !ok {
			s.static[key] = c.ID()
			continue
		}
		curMax, ok := maxRowForComponent(curChunk, comp)
		if !ok || candidateMax.Compare(curMax) > 0 {
			s.static[key] = c.ID()
		}
	}
}

// insertTemporalLocked registers c under every (entity, timeline,
// component) bucket it has both a timeline column and non-null component
// data for (spec.md §3.3, §4.1.1 step 3), updating time_range_per_chunk,
// and returns the set of buckets it was just added to so the caller can
// attempt compaction.
func (s *Store) insertTemporalLocked(c *rrchunk.Chunk) []compactionCandidate {
	var candidates []compactionCandidate
	for _, t := range c.Timelines() {
		lo, hi, ok := c.TimeRangeOn(t)
		if !ok {
			continue
		}
		byTimeline, ok := s.timeRangePerChunk[c.ID()]
		if !ok {
			byTimeline = make(map[ident.Timeline]TimeRange)
			s.timeRangePerChunk[c.ID()] = byTimeline
		}
		byTimeline[t] = TimeRange{Min: lo, Max: hi}

		for _, comp := range c.Components() {
			if !chunkHasComponentData(c, comp) {
				continue
			}
			key := perComponentKey(c.Entity(), t, comp)
			bt, ok := s.perComponent[key]
			if !ok {
				bt = btreeNew()
				s.perComponent[key] = bt
			}
			entry := chunkTimeEntry{MinTime: lo, ID: c.ID()}
			bt.ReplaceOrInsert(entry)

			keys, ok := s.keysByChunk[c.ID()]
			if !ok {
				keys = make(map[string]chunkTimeEntry)
				s.keysByChunk[c.ID()] = keys
			}
			keys[key] = entry

			candidates = append(candidates, compactionCandidate{Key: key, Timeline: t, Entry: entry})
		}
	}
	return candidates
}

// retireChunkLocked removes a chunk from every index it participates in.
// Rows remain in seenRows: RowId dedup must hold even for chunks that
// have since been compacted away or garbage-collected.
func (s *Store) retireChunkLocked(id rrchunk.ChunkID) {
	for key, entry := range s.keysByChunk[id] {
		if bt, ok := s.perComponent[key]; ok {
			bt.Delete(entry)
		}
	}
	delete(s.keysByChunk, id)
	delete(s.timeRangePerChunk, id)
	delete(s.chunks, id)
}

// tryCompactLocked attempts to merge the just-inserted chunk with one
// immediately-adjacent neighbor in the ordered set named by top (spec.md
// §4.1.1 step 4). It is a single O(1) neighbor walk: at most one merge is
// performed per Insert call, never a chain of merges.
func (s *Store) tryCompactLocked(top compactionCandidate, c *rrchunk.Chunk) (*rrchunk.Chunk, []rrchunk.ChunkID, bool) {
	bt := s.perComponent[top.Key]
	prev, next := neighborsOf(bt, top.Entry)
	for _, n := range []*chunkTimeEntry{prev, next} {
		if n == nil {
			continue
		}
		neighbor, ok := s.chunks[n.ID]
		if !ok {
			continue
		}
		merged, err := mergeChunks(c, neighbor)
		if err != nil {
			continue
		}
		if s.withinCompactionThresholds(merged, top.Timeline) {
			return merged, []rrchunk.ChunkID{c.ID(), neighbor.ID()}, true
		}
	}
	return nil, nil, false
}

func (s *Store) withinCompactionThresholds(merged *rrchunk.Chunk, drivingTimeline ident.Timeline) bool {
	maxRows := s.opts.ChunkMaxRows
	if !merged.IsSortedOn(drivingTimeline) {
		maxRows = s.opts.ChunkMaxRowsIfUnsorted
	}
	if merged.NumRows() > maxRows {
		return false
	}
	return merged.EstimatedBytes() <= s.opts.ChunkMaxBytes
}

// neighborsOf returns the entries immediately before and after self in bt,
// excluding self. Either may be nil.
func neighborsOf(bt *btreeG, self chunkTimeEntry) (prev, next *chunkTimeEntry) {
	bt.DescendLessOrEqual(self, func(item chunkTimeEntry) bool {
		if item.ID == self.ID {
			return true
		}
		found := item
		prev = &found
		return false
	})
	bt.AscendGreaterOrEqual(self, func(item chunkTimeEntry) bool {
		if item.ID == self.ID {
			return true
		}
		found := item
		next = &found
		return false
	})
	return prev, next
}
