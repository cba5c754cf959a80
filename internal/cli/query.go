package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rerun-chunkstore/internal/ident"
	"rerun-chunkstore/internal/rrquery"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a latest-at or range query against a freshly seeded store",
	}
	cmd.AddCommand(newLatestAtCmd(), newRangeCmd())
	return cmd
}

func newLatestAtCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "latest-at",
		Short: "Resolve each component to its value at or before --at",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFlags(cmd)
			if err != nil {
				return err
			}
			at, err := cmd.Flags().GetInt64("at")
			if err != nil {
				return err
			}
			store, _, err := seedStore(f)
			if err != nil {
				return err
			}

			components := store.AllComponentsForEntity(f.entity)
			result := rrquery.LatestAt(store, f.entity, f.timeline, ident.TimeInt(at), components)

			fmt.Fprintf(cmd.OutOrStdout(), "latest-at %s on %s @ %d for %s:\n", f.timeline.Name, f.timeline.String(), at, f.entity.String())
			if len(result) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  (no entries)")
				return nil
			}
			for comp, e := range result {
				printEntry(cmd, comp, e)
			}
			return nil
		},
	}
	c.Flags().Int64("at", 0, "query time, in timeline units")
	return c
}

func newRangeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "range",
		Short: "Resolve each component to every value within [--from, --to]",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := readFlags(cmd)
			if err != nil {
				return err
			}
			from, err := cmd.Flags().GetInt64("from")
			if err != nil {
				return err
			}
			to, err := cmd.Flags().GetInt64("to")
			if err != nil {
				return err
			}
			store, _, err := seedStore(f)
			if err != nil {
				return err
			}

			components := store.AllComponentsForEntity(f.entity)
			result := rrquery.Range(store, f.entity, f.timeline, ident.TimeInt(from), ident.TimeInt(to), components)

			fmt.Fprintf(cmd.OutOrStdout(), "range %s on %s [%d, %d] for %s:\n", f.timeline.Name, f.timeline.String(), from, to, f.entity.String())
			if len(result) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  (no entries)")
				return nil
			}
			for comp, entries := range result {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d entr(ies)\n", comp.String(), len(entries))
				for _, e := range entries {
					printEntry(cmd, comp, e)
				}
			}
			return nil
		},
	}
	c.Flags().Int64("from", 0, "range start, inclusive")
	c.Flags().Int64("to", 1<<30, "range end, inclusive")
	return c
}

func printEntry(cmd *cobra.Command, comp ident.ComponentIdentifier, e rrquery.Entry) {
	v := e.Chunk.ValueAtRow(comp, e.Row)
	fmt.Fprintf(cmd.OutOrStdout(), "  %s = %v  (row_id=%s, chunk=%s, time=%d)\n", comp.String(), v, e.Index.RowID.String(), e.Chunk.ID().String(), e.Index.Time)
}
