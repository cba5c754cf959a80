package rrstore

import (
	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
)

// mergeChunks combines two chunks for the same entity into one, unioning
// their timelines and components and concatenating their rows (spec.md
// §4.1.1 step 4: "merging with one neighbor produces a chunk ..."). Row
// order within the result doesn't need to match either input's sort
// order: rrchunk.Builder.Build recomputes is_sorted per timeline from the
// merged data.
func mergeChunks(a, b *rrchunk.Chunk) (*rrchunk.Chunk, error) {
	builder := rrchunk.NewBuilder(a.Entity())
	timelines := unionTimelines(a, b)
	comps := unionComponents(a, b)

	appendRows := func(c *rrchunk.Chunk) {
		for i := 0; i < c.NumRows(); i++ {
			var point ident.TimePoint
			if len(timelines) > 0 {
				point = make(ident.TimePoint, len(timelines))
				for _, t := range timelines {
					if v, ok := c.TimeAtRow(t, i); ok {
						point[t] = v
					} else {
						point[t] = ident.TimeIntStatic
					}
				}
			}
			values := make(map[ident.ComponentIdentifier]any, len(comps))
			for _, comp := range comps {
				if c.HasComponentAtRow(comp, i) {
					values[comp] = c.ValueAtRow(comp, i)
				}
			}
			builder.AddRow(c.RowID(i), point, values)
		}
	}
	appendRows(a)
	appendRows(b)
	return builder.Build()
}

func unionTimelines(a, b *rrchunk.Chunk) []ident.Timeline {
	seen := make(map[ident.Timeline]struct{})
	var out []ident.Timeline
	for _, t := range append(a.Timelines(), b.Timelines()...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func unionComponents(a, b *rrchunk.Chunk) []ident.ComponentIdentifier {
	seen := make(map[string]struct{})
	var out []ident.ComponentIdentifier
	for _, comp := range append(a.Components(), b.Components()...) {
		if _, ok := seen[comp.Key()]; ok {
			continue
		}
		seen[comp.Key()] = struct{}{}
		out = append(out, comp)
	}
	return out
}
