package rrstore

import (
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
)

// InsertVirtual makes chunks the prioritizer fetched from a remote manifest
// resident, without re-running RowId dedup against seenRows and without
// attempting compaction: these are already-sealed, manifest-known chunks
// being resurrected into residency (possibly after GC evicted them before),
// not freshly-ingested data competing for a compaction neighbor (spec.md
// §4.4.4). seenRows is still updated so a later ordinary Insert sharing
// these rows continues to dedup correctly (spec.md §9: "rows remain in
// seenRows" even once their chunk is gone).
//
// It publishes a single VirtualAddition event carrying every newly-resident
// chunk's metadata, so subscribers can update their indices the same way
// they do for a freshly-ingested Addition, without a separate ingestion
// path (spec.md §4.4.4).
func (s *Store) InsertVirtual(chunks []*rrchunk.Chunk) ([]rrevents.ChunkStoreEvent, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metas := make([]rrchunk.ChunkMeta, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if _, resident := s.chunks[c.ID()]; resident {
			continue
		}

		s.chunks[c.ID()] = c
		s.touchLocked(c.ID())
		s.registerComponentsLocked(c)

		if c.IsStatic() {
			s.applyStaticLocked(c)
		} else {
			s.insertTemporalLocked(c)
		}
		for i := 0; i < c.NumRows(); i++ {
			s.seenRows[c.RowID(i)] = struct{}{}
		}
		metas = append(metas, c.Meta())
	}

	if len(metas) == 0 {
		return nil, nil
	}

	s.generation++
	event := s.makeEvent(rrevents.VirtualAddition(metas))
	events := []rrevents.ChunkStoreEvent{event}
	if s.opts.EnableChangelog && s.bus != nil {
		s.bus.Publish(events)
	}
	return events, nil
}
