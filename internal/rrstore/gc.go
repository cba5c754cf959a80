package rrstore

import (
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
)

// GC evicts temporal chunks not in protected, preferring the lowest
// recent-use chunks first, until total resident bytes are at or under
// budget (spec.md §5). Static chunks and the authoritative static map are
// never evicted.
func (s *Store) GC(budget int64, protected map[rrchunk.ChunkID]bool) []rrevents.ChunkStoreEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.totalBytesLocked()
	if total <= budget {
		return nil
	}
	startTotal := total

	staticSet := make(map[rrchunk.ChunkID]bool, len(s.static))
	for _, id := range s.static {
		staticSet[id] = true
	}

	// recentUse.Keys() returns oldest-to-newest access order, which is
	// exactly "lowest recent-use first" (spec.md §5). Eviction order is
	// access recency alone: chunk size is not taken into account.
	var deletions []rrevents.ChunkStoreEvent
	for _, key := range s.recentUse.Keys() {
		if total <= budget {
			break
		}
		id, ok := key.(rrchunk.ChunkID)
		if !ok || staticSet[id] || protected[id] {
			continue
		}
		c, ok := s.chunks[id]
		if !ok {
			continue
		}
		s.retireChunkLocked(id)
		s.recentUse.Remove(id)
		total -= c.EstimatedBytes()
		deletions = append(deletions, s.makeEvent(rrevents.Deletion(id)))
	}

	if len(deletions) == 0 {
		return nil
	}
	s.generation++
	for i := range deletions {
		deletions[i].Generation = s.generation
	}
	if s.opts.EnableChangelog && s.bus != nil {
		s.bus.Publish(deletions)
	}
	s.logger.Info("garbage collected chunks", "count", len(deletions), "bytes_freed", startTotal-total)
	return deletions
}
