package ident

import "math"

// TimeType identifies the unit a Timeline's coordinates are expressed in
// (spec.md §3.1).
type TimeType int

const (
	// Sequence is a monotonic integer counter (e.g. frame number).
	Sequence TimeType = iota
	// Time is nanoseconds since the Unix epoch.
	Time
	// Duration is nanoseconds elapsed, not anchored to the epoch.
	Duration
)

func (t TimeType) String() string {
	switch t {
	case Sequence:
		return "Sequence"
	case Time:
		return "Time"
	case Duration:
		return "Duration"
	default:
		return "Unknown"
	}
}

// Timeline is a named temporal axis plus the type of its coordinates.
// Timelines with the same name but different types are distinct (spec.md
// §3.1).
type Timeline struct {
	Name string
	Typ  TimeType
}

// NewTimeline constructs a Timeline.
func NewTimeline(name string, typ TimeType) Timeline {
	return Timeline{Name: name, Typ: typ}
}

func (t Timeline) String() string { return t.Name + ":" + t.Typ.String() }

// TimeInt is a signed 64-bit time coordinate with two sentinels: MIN (the
// logical beginning of time, distinct from the minimum representable int64)
// and Static (present on every timeline, ordered before all temporal data
// at tie-break time). Spec.md §3.1.
type TimeInt int64

const (
	// TimeIntStatic sorts before every temporal TimeInt at tie-break time.
	TimeIntStatic TimeInt = math.MinInt64
	// TimeIntMin is the logical beginning of temporal time; distinct from
	// math.MinInt64 which is reserved for TimeIntStatic.
	TimeIntMin TimeInt = math.MinInt64 + 1
	// TimeIntMax is the logical end of temporal time.
	TimeIntMax TimeInt = math.MaxInt64
)

// IsStatic reports whether this TimeInt is the static sentinel.
func (t TimeInt) IsStatic() bool { return t == TimeIntStatic }

// Before reports whether t sorts strictly before other, with Static sorting
// before every other value.
func (t TimeInt) Before(other TimeInt) bool { return t < other }
