//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cache"
	"github.com/homologus/kallimass/lib/em"
)

// Replay re-runs the mini-batch EM step (C7) over a previously cached
// library, skipping seed collection, chain scoring and hit assembly
// (C4-C6) entirely: one reader goroutine deserializes AlignmentGroups
// from r into a channel, and numWorkers worker goroutines fold them
// into acc in mini-batches exactly as runWorker does on the hot path.
// numRecords is r's writer's recorded NumWritten, standing in for the
// cache file's absent end-of-stream marker (spec.md §6).
func Replay(ctx context.Context, r *cache.Reader, numRecords uint64, pool *alignment.Pool, acc *em.Accumulator, numWorkers int, cfg Config) error {
	g, gctx := errgroup.WithContext(ctx)

	chGroups := make(chan *alignment.Group, numWorkers*cfg.BatchSize)
	g.Go(func() error {
		defer close(chGroups)
		for i := uint64(0); i < numRecords; i++ {
			grp := pool.Checkout()
			if err := r.ReadGroup(grp); err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chGroups <- grp:
			}
		}
		return nil
	})

	wg, wgctx := errgroup.WithContext(gctx)
	for i := 0; i < numWorkers; i++ {
		wg.Go(func() error {
			return replayWorker(wgctx, cfg, pool, acc, chGroups)
		})
	}
	g.Go(wg.Wait)

	return g.Wait()
}

func replayWorker(ctx context.Context, cfg Config, pool *alignment.Pool, acc *em.Accumulator, chGroups <-chan *alignment.Group) error {
	batch := make([]*alignment.Group, 0, cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		acc.ProcessBatch(batch, cfg.EMParams, cfg.UpdateCounts)
		for _, g := range batch {
			pool.Return(g)
		}
		batch = batch[:0]
	}

	for g := range chGroups {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch = append(batch, g)
		if len(batch) == cfg.BatchSize {
			flush()
		}
	}
	flush()
	return nil
}
