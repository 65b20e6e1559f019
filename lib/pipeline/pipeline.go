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
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/em"
	"github.com/homologus/kallimass/lib/readio"
	"github.com/homologus/kallimass/lib/seedindex"
)

// Run drives one library's hot-path pass: a parser goroutine feeds
// fragment jobs to numWorkers worker goroutines, each of which fills an
// AlignmentGroup per fragment (C4-C6), folds completed mini-batches into
// acc (C7), and either returns groups straight to pool or -- when out is
// non-nil -- hands the batch to the elastic output queue for the cache
// writer to persist. Modeled on PConFeature's parser/worker-errgroup
// split (cmd/geneabacus/pc.go), with the combine stage dropped: unlike
// the teacher's per-feature count arrays, em.Accumulator is already
// safe for concurrent ProcessBatch calls, so workers fold directly.
func Run(ctx context.Context, idx seedindex.Index, parser readio.ReadParser, pool *alignment.Pool, acc *em.Accumulator, numWorkers int, cfg Config, out *OutputQueue) (nFragments uint64, err error) {
	g, gctx := errgroup.WithContext(ctx)

	chJobs := make(chan []readio.FragmentRecord, numWorkers*4)
	g.Go(func() error {
		defer close(chJobs)
		for {
			job, err := parser.NextJob(gctx)
			if err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chJobs <- job:
			}
		}
	})

	var total counter
	wg, wgctx := errgroup.WithContext(gctx)
	for i := 0; i < numWorkers; i++ {
		wg.Go(func() error {
			return runWorker(wgctx, idx, cfg, pool, acc, out, chJobs, &total)
		})
	}
	g.Go(wg.Wait)

	if err := g.Wait(); err != nil {
		return total.get(), err
	}
	return total.get(), nil
}

// runWorker consumes fragment jobs until chJobs closes, filling one
// AlignmentGroup per fragment and folding groups into acc once BatchSize
// have accumulated.
func runWorker(ctx context.Context, idx seedindex.Index, cfg Config, pool *alignment.Pool, acc *em.Accumulator, out *OutputQueue, chJobs <-chan []readio.FragmentRecord, total *counter) error {
	batch := make([]*alignment.Group, 0, cfg.BatchSize)
	// flush hands the current mini-batch to the EM step and then either
	// the pool or the output queue. When out is set, the slice passed to
	// Enqueue must not be the one we keep appending to afterward -- a
	// fresh backing array is allocated instead of batch[:0] reuse, since
	// the output queue (or its consumer) may still be holding the old
	// slice when the next mini-batch starts filling it.
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		acc.ProcessBatch(batch, cfg.EMParams, cfg.UpdateCounts)
		if out != nil {
			if err := out.Enqueue(batch); err != nil {
				return err
			}
			batch = make([]*alignment.Group, 0, cfg.BatchSize)
		} else {
			for _, g := range batch {
				pool.Return(g)
			}
			batch = batch[:0]
		}
		return nil
	}

	for job := range chJobs {
		for _, frag := range job {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			g := pool.Checkout()
			fillGroup(idx, cfg, frag, g)
			batch = append(batch, g)
			total.add(1)
			if len(batch) == cfg.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// counter is a tiny mutex-guarded uint64, used only to report the total
// fragment count back to the caller without reaching for atomics that
// would outlive this one use.
type counter struct {
	mu sync.Mutex
	n  uint64
}

func (c *counter) add(d uint64) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *counter) get() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
