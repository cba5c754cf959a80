package main

import (
	"fmt"
	"log/slog"
	"os"

	"rerun-chunkstore/internal/cli"
	"rerun-chunkstore/internal/logging"
)

func main() {
	filter := logging.NewComponentFilterHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.LevelInfo,
	)
	for _, component := range verboseComponents() {
		filter.SetLevel(component, slog.LevelDebug)
	}
	slog.SetDefault(slog.New(filter))

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// verboseComponents reads RERUN_CHUNKSTORE_VERBOSE, a comma-separated list
// of component names (e.g. "chunk-store,chunk-prioritizer") to log at debug level;
// every other component stays at the default info level.
func verboseComponents() []string {
	raw := os.Getenv("RERUN_CHUNKSTORE_VERBOSE")
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
