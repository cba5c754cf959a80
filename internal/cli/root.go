// Package cli implements the demo command tree that exercises the chunk
// store end to end: ingest, query, and inspect (spec.md §1, SPEC_FULL.md
// §2). It is an ambient-stack concession, not a reimplementation of
// Rerun's own CLI: every invocation seeds a small deterministic dataset
// in-process, then performs the requested operation against it, since file
// persistence and network transport are explicit non-goals.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the "rerunstore" command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rerunstore",
		Short: "Demo CLI for the time-indexed columnar chunk store",
		Long:  "Seeds a small synthetic dataset and demonstrates ingestion, latest-at/range queries, and store introspection.",
	}

	cmd.PersistentFlags().String("entity", "world/robot", "entity path, slash-separated")
	cmd.PersistentFlags().String("timeline", "frame", "timeline name")
	cmd.PersistentFlags().String("component", "Position3D", "component type")
	cmd.PersistentFlags().Int("rows", 10, "number of synthetic temporal rows to seed")
	cmd.PersistentFlags().Bool("static", false, "also seed one static row for the component")

	cmd.AddCommand(
		newIngestCmd(),
		newQueryCmd(),
		newInspectCmd(),
	)
	return cmd
}
