package ident

// ComponentIdentifier is the triple (archetype?, archetype_field?,
// component_type?) carried as column metadata (spec.md §3.1). Components
// with the same component type but distinct archetype/field tags are
// distinct columns.
type ComponentIdentifier struct {
	Archetype      string
	ArchetypeField string
	ComponentType  string
}

// NewComponentIdentifier builds a fully-tagged component identifier.
func NewComponentIdentifier(archetype, field, componentType string) ComponentIdentifier {
	return ComponentIdentifier{Archetype: archetype, ArchetypeField: field, ComponentType: componentType}
}

// Bare builds a component identifier carrying only a component type, with
// no archetype tag.
func Bare(componentType string) ComponentIdentifier {
	return ComponentIdentifier{ComponentType: componentType}
}

// Key returns a value usable as a comparable map key.
func (c ComponentIdentifier) Key() string {
	return c.Archetype + "\x00" + c.ArchetypeField + "\x00" + c.ComponentType
}

func (c ComponentIdentifier) String() string {
	if c.Archetype == "" && c.ArchetypeField == "" {
		return c.ComponentType
	}
	return c.Archetype + "#" + c.ArchetypeField + ":" + c.ComponentType
}

// TimePoint is a multi-timeline coordinate: the set of (timeline, time)
// pairs a row is logged at (spec.md §3.1).
type TimePoint map[Timeline]TimeInt

// CompoundIndex is the pair (time, RowID) that totally orders rows on a
// given timeline (spec.md GLOSSARY, §4.2.1).
type CompoundIndex struct {
	Time  TimeInt
	RowID RowID
}

// Less reports whether c sorts strictly before other by (time, RowID).
func (c CompoundIndex) Less(other CompoundIndex) bool {
	if c.Time != other.Time {
		return c.Time < other.Time
	}
	return c.RowID.Less(other.RowID)
}

// Static is the compound index used for rows sourced from a static chunk.
func Static(row RowID) CompoundIndex {
	return CompoundIndex{Time: TimeIntStatic, RowID: row}
}
