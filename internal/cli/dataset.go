package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrevents"
	"rerun-chunkstore/internal/rrstore"
	"rerun-chunkstore/internal/visualizer"
)

// flags collects the persistent flags shared by every subcommand.
type flags struct {
	entity    ident.EntityPath
	timeline  ident.Timeline
	component ident.ComponentIdentifier
	rows      int
	static    bool
}

func readFlags(cmd *cobra.Command) (flags, error) {
	entityStr, err := cmd.Flags().GetString("entity")
	if err != nil {
		return flags{}, err
	}
	timelineStr, err := cmd.Flags().GetString("timeline")
	if err != nil {
		return flags{}, err
	}
	componentStr, err := cmd.Flags().GetString("component")
	if err != nil {
		return flags{}, err
	}
	rows, err := cmd.Flags().GetInt("rows")
	if err != nil {
		return flags{}, err
	}
	static, err := cmd.Flags().GetBool("static")
	if err != nil {
		return flags{}, err
	}
	if rows < 0 {
		return flags{}, fmt.Errorf("--rows must be >= 0, got %d", rows)
	}

	return flags{
		entity:    ident.NewEntityPath(splitPath(entityStr)...),
		timeline:  ident.NewTimeline(timelineStr, ident.Sequence),
		component: ident.Bare(componentStr),
		rows:      rows,
		static:    static,
	}, nil
}

func splitPath(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// seedStore builds a fresh in-memory store and ingests f.rows synthetic
// temporal rows (and, if requested, one static row) for f.entity/component
// on f.timeline. There is no persistence or transport layer to load real
// data from (spec.md §1's explicit non-goals), so every invocation of this
// CLI seeds its own deterministic dataset before exercising the requested
// operation. A visualizer.EntitySubscriber watching for f.component is
// registered before any inserts, so the returned subscriber's indicated/
// visualizable sets reflect every row this call ingests (spec.md §4.3.3).
func seedStore(f flags) (*rrstore.Store, *visualizer.EntitySubscriber, error) {
	bus := rrevents.NewBus()
	sub := visualizer.NewEntitySubscriber(f.component.Archetype, visualizer.NewAnyComponentRequirement(f.component))
	bus.Register(sub)
	store := rrstore.NewStore("demo", bus, rrstore.DefaultOptions(), slog.Default())

	if f.static {
		b := rrchunk.NewBuilder(f.entity)
		b.AddRow(ident.NewRowID(), ident.TimePoint{}, map[ident.ComponentIdentifier]any{
			f.component: fmt.Sprintf("%s-static", f.component.String()),
		})
		c, err := b.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("building static chunk: %w", err)
		}
		if _, err := store.Insert(c); err != nil {
			return nil, nil, fmt.Errorf("inserting static chunk: %w", err)
		}
	}

	for i := 0; i < f.rows; i++ {
		b := rrchunk.NewBuilder(f.entity)
		b.AddRow(ident.NewRowID(), ident.TimePoint{f.timeline: ident.TimeInt(i)}, map[ident.ComponentIdentifier]any{
			f.component: float64(i),
		})
		c, err := b.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("building row %d: %w", i, err)
		}
		if _, err := store.Insert(c); err != nil {
			return nil, nil, fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	return store, sub, nil
}
