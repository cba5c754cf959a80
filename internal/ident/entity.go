// Package ident implements the identifiers and time model shared across the
// chunk store: entity paths, timelines, time coordinates, row ids and
// component identifiers.
package ident

import (
	"fmt"
	"hash/maphash"
	"strconv"
	"strings"
)

// pathSeed is process-wide so EntityPath.Hash is stable within a run but
// not across runs, matching maphash's intended usage.
var pathSeed = maphash.MakeSeed()

// PathPart is one segment of an EntityPath: either a named component or an
// integer instance index. Modeled as a tagged union rather than an
// interface hierarchy, following the teacher's RotationPolicy/Digester
// convention of small tagged variants over type hierarchies.
type PathPart struct {
	name  string
	index int64
	isIdx bool
}

// Name constructs a named path part, e.g. "camera".
func Name(s string) PathPart { return PathPart{name: s} }

// Index constructs an instance-index path part, e.g. the `42` in `points[42]`.
func Index(i int64) PathPart { return PathPart{index: i, isIdx: true} }

// IsIndex reports whether this part is an integer instance index.
func (p PathPart) IsIndex() bool { return p.isIdx }

func (p PathPart) String() string {
	if p.isIdx {
		return strconv.FormatInt(p.index, 10)
	}
	return p.name
}

// EntityPath is an ordered sequence of path components naming what a row of
// data is about (spec.md §3.1).
type EntityPath struct {
	parts []PathPart
}

// NewEntityPath builds an EntityPath from string segments; segments that
// parse as integers become instance indices.
func NewEntityPath(segments ...string) EntityPath {
	parts := make([]PathPart, 0, len(segments))
	for _, s := range segments {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			parts = append(parts, Index(n))
			continue
		}
		parts = append(parts, Name(s))
	}
	return EntityPath{parts: parts}
}

// FromParts builds an EntityPath directly from parts.
func FromParts(parts ...PathPart) EntityPath {
	cp := make([]PathPart, len(parts))
	copy(cp, parts)
	return EntityPath{parts: cp}
}

// Len returns the number of path components.
func (e EntityPath) Len() int { return len(e.parts) }

// Part returns the i-th path component.
func (e EntityPath) Part(i int) PathPart { return e.parts[i] }

// String renders the path as a "/"-joined string, e.g. "/world/camera".
func (e EntityPath) String() string {
	var b strings.Builder
	for _, p := range e.parts {
		b.WriteByte('/')
		b.WriteString(p.String())
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// IsAncestorOf reports whether e's components are a strict prefix of other's
// (spec.md §3.1: "a is an ancestor of b if its components are a prefix of
// b's").
func (e EntityPath) IsAncestorOf(other EntityPath) bool {
	if len(e.parts) >= len(other.parts) {
		return false
	}
	for i, p := range e.parts {
		if p != other.parts[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two entity paths name the same entity.
func (e EntityPath) Equal(other EntityPath) bool {
	if len(e.parts) != len(other.parts) {
		return false
	}
	for i, p := range e.parts {
		if p != other.parts[i] {
			return false
		}
	}
	return true
}

// Hash returns a stable (within-process) hash of the path, suitable for use
// as a map key alongside String(); maps in this package key on the string
// form directly since Go map keys must be comparable, but Hash is exposed
// for callers building their own hash-indexed structures.
func (e EntityPath) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(pathSeed)
	for _, p := range e.parts {
		_, _ = h.WriteString(p.String())
		_ = h.WriteByte(0)
	}
	return h.Sum64()
}

// Key returns a value usable as a comparable map key for this path.
func (e EntityPath) Key() string { return e.String() }

func (p PathPart) GoString() string {
	if p.isIdx {
		return fmt.Sprintf("Index(%d)", p.index)
	}
	return fmt.Sprintf("Name(%q)", p.name)
}
