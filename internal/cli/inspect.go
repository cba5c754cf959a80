package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rerun-chunkstore/internal/ident"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Report the store's component inventory and timeline coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFlags(cmd)
			if err != nil {
				return err
			}
			store, sub, err := seedStore(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entity:    %s\n", f.entity.String())
			fmt.Fprintf(out, "timeline:  %s\n", f.timeline.String())
			fmt.Fprintf(out, "store size: %d bytes\n", store.TotalBytes())

			if tr, ok := store.TimeRange(f.timeline); ok {
				fmt.Fprintf(out, "time range: [%d, %d]\n", tr.Min, tr.Max)
			} else {
				fmt.Fprintln(out, "time range: (no temporal data on this timeline)")
			}

			comps := store.AllComponentsForEntity(f.entity)
			fmt.Fprintf(out, "components (%d):\n", len(comps))
			for _, c := range comps {
				_, static := store.StaticChunkFor(f.entity, c)
				chunks := store.ChunksFor(f.entity, f.timeline, c)
				fmt.Fprintf(out, "  %-40s static=%-5t temporal_chunks=%d\n", c.String(), static, len(chunks))
			}

			fmt.Fprintf(out, "indicated:    %v\n", entityNames(sub.IndicatedEntities()))
			fmt.Fprintf(out, "visualizable: %v\n", entityNames(sub.VisualizableEntities()))
			return nil
		},
	}
}

// entityNames renders an EntityPath slice as plain strings for display.
func entityNames(entities []ident.EntityPath) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.String()
	}
	return out
}
