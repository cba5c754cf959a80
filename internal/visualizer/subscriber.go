// Package visualizer implements the built-in visualizer entity subscriber
// (spec.md §4.3.3): per registered visualizer type, it watches store events
// and maintains two latching, append-only entity sets — indicated entities
// (ever carried a column tagged with the archetype of interest) and
// visualizable entities (meet the visualizer's component requirement).
package visualizer

import (
	"sync"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
)

// EntitySubscriber is one visualizer type's subscriber instance, registered
// on a store's event bus (spec.md §4.3.3).
type EntitySubscriber struct {
	mu sync.Mutex

	// archetypeOfInterest gates the indicated set. Empty means the
	// visualizer declares no archetype of interest, so every entity seen in
	// an Addition or VirtualAddition event is indicated.
	archetypeOfInterest string
	requirement         Requirement

	indicated    map[string]bool
	visualizable map[string]bool
	trackers     map[string]Tracker
	entities     map[string]ident.EntityPath
}

// NewEntitySubscriber constructs a subscriber for one visualizer type.
// archetypeOfInterest may be empty (spec.md §4.3.3: "or every entity if the
// visualizer declares no archetype").
func NewEntitySubscriber(archetypeOfInterest string, requirement Requirement) *EntitySubscriber {
	return &EntitySubscriber{
		archetypeOfInterest: archetypeOfInterest,
		requirement:         requirement,
		indicated:           make(map[string]bool),
		visualizable:        make(map[string]bool),
		trackers:            make(map[string]Tracker),
		entities:            make(map[string]ident.EntityPath),
	}
}

// OnEvents implements rrevents.Subscriber. Deletions never retract latched
// state: indicated and visualizable are append-only sets (spec.md §4.3.3).
func (s *EntitySubscriber) OnEvents(events []rrevents.ChunkStoreEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		switch ev.Diff.Kind {
		case rrevents.DiffAddition:
			s.observeMetaLocked(ev.Diff.Meta)
		case rrevents.DiffVirtualAddition:
			for _, m := range ev.Diff.Metas {
				s.observeMetaLocked(m)
			}
		}
	}
}

// AsAny implements rrevents.Subscriber, the typed-downcast escape hatch
// (spec.md §6.3) so a subscriber's owner can reach the concrete type to
// call IsIndicated/IsVisualizable.
func (s *EntitySubscriber) AsAny() any { return s }

func (s *EntitySubscriber) observeMetaLocked(meta rrchunk.ChunkMeta) {
	key := meta.Entity.Key()

	if s.archetypeOfInterest == "" {
		s.markIndicatedLocked(key, meta.Entity)
	} else {
		for _, col := range meta.Columns {
			if col.HasData && col.Component.Archetype == s.archetypeOfInterest {
				s.markIndicatedLocked(key, meta.Entity)
				break
			}
		}
	}

	if s.visualizable[key] {
		return
	}
	tracker, ok := s.trackers[key]
	if !ok {
		tracker = s.requirement.NewTracker()
		s.trackers[key] = tracker
	}

	// Probe once with a zero-value observation so NoRequirement latches an
	// entity the moment it's observed at all, even from a chunk whose
	// columns are all still building toward a multi-component requirement.
	if tracker.Observe(ColumnObservation{}) {
		s.markVisualizableLocked(key, meta.Entity)
		return
	}
	for _, col := range meta.Columns {
		if !col.HasData {
			continue
		}
		obs := ColumnObservation{Component: col.Component, ArrowType: col.ArrowType, IsStatic: col.IsStatic}
		if tracker.Observe(obs) {
			s.markVisualizableLocked(key, meta.Entity)
			return
		}
	}
}

func (s *EntitySubscriber) markIndicatedLocked(key string, entity ident.EntityPath) {
	if !s.indicated[key] {
		s.indicated[key] = true
		s.entities[key] = entity
	}
}

// markVisualizableLocked latches key into the visualizable set, recording
// its EntityPath the same way markIndicatedLocked does: indicated and
// visualizable are independent sets (spec.md §4.3.3), and an entity can
// become visualizable without ever being indicated, so entities[key] must
// be set here too, not just in markIndicatedLocked.
func (s *EntitySubscriber) markVisualizableLocked(key string, entity ident.EntityPath) {
	s.visualizable[key] = true
	if _, ok := s.entities[key]; !ok {
		s.entities[key] = entity
	}
}

// IsIndicated reports whether entity has ever carried a column tagged with
// the archetype of interest (spec.md §4.3.3).
func (s *EntitySubscriber) IsIndicated(entity ident.EntityPath) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indicated[entity.Key()]
}

// IsVisualizable reports whether entity currently meets the requirement.
func (s *EntitySubscriber) IsVisualizable(entity ident.EntityPath) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visualizable[entity.Key()]
}

// IndicatedEntities returns the current indicated set.
func (s *EntitySubscriber) IndicatedEntities() []ident.EntityPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ident.EntityPath, 0, len(s.indicated))
	for key := range s.indicated {
		out = append(out, s.entities[key])
	}
	return out
}

// VisualizableEntities returns the current visualizable set.
func (s *EntitySubscriber) VisualizableEntities() []ident.EntityPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ident.EntityPath, 0, len(s.visualizable))
	for key := range s.visualizable {
		out = append(out, s.entities[key])
	}
	return out
}

var _ rrevents.Subscriber = (*EntitySubscriber)(nil)
