// Package config reads the chunk store's process-wide tunables from the
// environment once at construction time (spec.md §6.4). It follows the
// teacher's convention of small, explicitly-defaulted Config structs
// (chunk/memory.Config, chunk.RotationPolicy defaults in NewManager)
// rather than a global configuration singleton: rrstore.DefaultOptions
// reads the environment once via Load and copies the result into the
// Options passed to rrstore.NewStore.
package config

import (
	"os"
	"strconv"
)

// Defaults applied when the corresponding environment variable is unset
// or unparsable, matching the teacher's NewManager pattern of falling back
// to a concrete default rather than erroring on missing configuration.
const (
	DefaultChunkMaxRows           = 4096
	DefaultChunkMaxRowsIfUnsorted = 1024
	DefaultChunkMaxBytes          = 16 << 20 // 16 MiB
)

// StoreConfig holds the compaction thresholds recognized by spec.md §4.1.2.
type StoreConfig struct {
	ChunkMaxRows           int
	ChunkMaxRowsIfUnsorted int
	ChunkMaxBytes          int64
}

// Load reads CHUNK_MAX_ROWS, CHUNK_MAX_ROWS_IF_UNSORTED and CHUNK_MAX_BYTES
// from the environment (spec.md §6.4), falling back to defaults for any
// variable that is unset or fails to parse as an integer.
func Load() StoreConfig {
	return StoreConfig{
		ChunkMaxRows:           envInt("CHUNK_MAX_ROWS", DefaultChunkMaxRows),
		ChunkMaxRowsIfUnsorted: envInt("CHUNK_MAX_ROWS_IF_UNSORTED", DefaultChunkMaxRowsIfUnsorted),
		ChunkMaxBytes:          envInt64("CHUNK_MAX_BYTES", DefaultChunkMaxBytes),
	}
}

func envInt(name string, fallback int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(name string, fallback int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
