package visualizer

import (
	"github.com/RoaringBitmap/roaring/v2"

	"rerun-chunkstore/internal/ident"
)

// ColumnObservation is what a Tracker learns about one column an ingested
// chunk carried non-null data for (spec.md §4.3.3).
type ColumnObservation struct {
	Component ident.ComponentIdentifier
	ArrowType string
	IsStatic  bool
}

// Tracker accumulates column observations for a single entity and reports
// whether its requirement is satisfied. Trackers must be monotonic: once
// Observe returns true, every later call must also return true (spec.md
// §4.3.3: "both sets are additive; entries are never retracted").
type Tracker interface {
	Observe(col ColumnObservation) bool
}

// Requirement decides whether an entity becomes visualizable. This mirrors
// the teacher's RotationPolicy/RetentionPolicy shape — an interface with a
// handful of named struct implementations rather than one parameterized
// type — generalized here to the four variants spec.md §4.3.3 names instead
// of N rotation policies composed by a CompositePolicy.
type Requirement interface {
	// NewTracker starts fresh per-entity bookkeeping. Requirements that need
	// no cross-column state (None, AnyComponent, AnyPhysicalDatatype) can
	// return a stateless or near-stateless Tracker; AllComponents needs one
	// bitmap per entity, hence the factory.
	NewTracker() Tracker
}

// NoRequirement makes every entity visualizable unconditionally.
type NoRequirement struct{}

func (NoRequirement) NewTracker() Tracker { return noRequirementTracker{} }

type noRequirementTracker struct{}

func (noRequirementTracker) Observe(ColumnObservation) bool { return true }

// AllComponentsRequirement is satisfied once an entity has carried a
// non-null value for every component in Components, tracked with a
// per-entity bitmap whose bits latch true (spec.md §4.3.3).
type AllComponentsRequirement struct {
	Components []ident.ComponentIdentifier
}

// NewAllComponentsRequirement builds an AllComponentsRequirement over the
// given component set.
func NewAllComponentsRequirement(components ...ident.ComponentIdentifier) AllComponentsRequirement {
	return AllComponentsRequirement{Components: components}
}

func (r AllComponentsRequirement) NewTracker() Tracker {
	index := make(map[string]uint32, len(r.Components))
	for i, c := range r.Components {
		index[c.Key()] = uint32(i)
	}
	return &allComponentsTracker{
		bits:     roaring.NewBitmap(),
		index:    index,
		required: uint64(len(r.Components)),
	}
}

type allComponentsTracker struct {
	bits     *roaring.Bitmap
	index    map[string]uint32
	required uint64
	done     bool
}

func (t *allComponentsTracker) Observe(col ColumnObservation) bool {
	if t.done {
		return true
	}
	if pos, ok := t.index[col.Component.Key()]; ok {
		t.bits.Add(pos)
	}
	if t.bits.GetCardinality() >= t.required {
		t.done = true
	}
	return t.done
}

// AnyComponentRequirement is satisfied upon the first non-null value for
// any component in Components (spec.md §4.3.3).
type AnyComponentRequirement struct {
	Components []ident.ComponentIdentifier
}

// NewAnyComponentRequirement builds an AnyComponentRequirement over the
// given component set.
func NewAnyComponentRequirement(components ...ident.ComponentIdentifier) AnyComponentRequirement {
	return AnyComponentRequirement{Components: components}
}

func (r AnyComponentRequirement) NewTracker() Tracker {
	set := make(map[string]struct{}, len(r.Components))
	for _, c := range r.Components {
		set[c.Key()] = struct{}{}
	}
	return &anyComponentTracker{set: set}
}

type anyComponentTracker struct {
	set  map[string]struct{}
	done bool
}

func (t *anyComponentTracker) Observe(col ColumnObservation) bool {
	if t.done {
		return true
	}
	if _, ok := t.set[col.Component.Key()]; ok {
		t.done = true
	}
	return t.done
}

// AnyPhysicalDatatypeRequirement is satisfied when an entity carries a
// column whose inner arrow datatype is in PhysicalTypes, or whose semantic
// component type equals SemanticType. Built-in enum-typed components
// (TargetIsEnum) match only via SemanticType, never the physical-type
// fallback, so unrelated columns sharing a primitive representation (e.g.
// another uint8 enum) aren't picked up (spec.md §4.3.3).
type AnyPhysicalDatatypeRequirement struct {
	TargetIsEnum  bool
	SemanticType  string
	PhysicalTypes []string
	AllowStatic   bool
}

func (r AnyPhysicalDatatypeRequirement) NewTracker() Tracker {
	req := r
	return &anyPhysicalDatatypeTracker{req: &req}
}

type anyPhysicalDatatypeTracker struct {
	req  *AnyPhysicalDatatypeRequirement
	done bool
}

func (t *anyPhysicalDatatypeTracker) Observe(col ColumnObservation) bool {
	if t.done {
		return true
	}
	if !t.req.AllowStatic && col.IsStatic {
		return false
	}
	if col.Component.ComponentType == t.req.SemanticType {
		t.done = true
		return true
	}
	if t.req.TargetIsEnum {
		return false
	}
	for _, pt := range t.req.PhysicalTypes {
		if pt == col.ArrowType {
			t.done = true
			return true
		}
	}
	return false
}
