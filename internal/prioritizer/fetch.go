package prioritizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rerun-chunkstore/internal/rrchunk"
	"rerun-chunkstore/internal/rrstore"
)

// ResolveAll resolves every promise concurrently via an errgroup, returning
// the chunks each promise fetched, in promise order (spec.md §4.4.3). The
// actual transport is whatever Fetcher the promises carry; providing one is
// the network non-goal of spec.md §1.
func ResolveAll(ctx context.Context, promises []*ChunkPromise) ([][]*rrchunk.Chunk, error) {
	results := make([][]*rrchunk.Chunk, len(promises))
	g, gctx := errgroup.WithContext(ctx)
	for i, promise := range promises {
		i, promise := i, promise
		g.Go(func() error {
			chunks, err := promise.Resolve(gctx)
			if err != nil {
				return err
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveAllAndPublish resolves every promise (see ResolveAll) and then
// makes every fetched chunk resident in store via Store.InsertVirtual,
// which publishes the resulting VirtualAddition event on the store's bus
// (spec.md §4.4.4: "Fetched chunks enter the store as VirtualAddition
// events so subscribers can update indices without a separate ingestion
// path"). This is the production path from a prioritization tick's
// promises to a store's residency; callers with no store to publish into
// can call ResolveAll directly.
func ResolveAllAndPublish(ctx context.Context, store *rrstore.Store, promises []*ChunkPromise) ([][]*rrchunk.Chunk, error) {
	results, err := ResolveAll(ctx, promises)
	if err != nil {
		return nil, err
	}

	var fetched []*rrchunk.Chunk
	for _, chunks := range results {
		fetched = append(fetched, chunks...)
	}
	if len(fetched) > 0 {
		if _, err := store.InsertVirtual(fetched); err != nil {
			return nil, err
		}
	}
	return results, nil
}
