package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Seed a synthetic dataset and report what landed in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFlags(cmd)
			if err != nil {
				return err
			}
			store, _, err := seedStore(f)
			if err != nil {
				return err
			}

			comps := store.AllComponentsForEntity(f.entity)
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d row(s) for %s on %s (static=%t)\n", f.rows, f.entity.String(), f.timeline.String(), f.static)
			fmt.Fprintf(cmd.OutOrStdout(), "entity now carries %d component(s):\n", len(comps))
			for _, c := range comps {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", c.String())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store size: %d bytes\n", store.TotalBytes())
			return nil
		},
	}
}
