//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package pipeline

import (
	"bufio"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cache"
)

// OutputQueue is the "unbounded but elastic" output-groups queue
// (spec.md §4.8): a buffered channel up to a soft capacity, spilling
// whole mini-batches to a zstd-compressed scratch file instead of
// blocking a worker when the channel is full. Close drains whatever
// landed on disk back into the channel before closing it, so a
// consumer ranging over C() never has to know a batch took the disk
// detour.
//
// This is a distinct on-disk format from lib/cache's per-library
// alignment cache: that one is replayed across EM passes and always
// uses lz4, while a spill file here is a one-shot relief valve, written
// once and drained once, so it uses zstd (spec.md §4.13).
type OutputQueue struct {
	ch   chan []*alignment.Group
	pool *alignment.Pool
	path string

	spillMu sync.Mutex
	f       *os.File
	zw      *zstd.Encoder
	spilled uint64
}

// NewOutputQueue creates a queue holding up to softCap batches in
// memory before a bulk Enqueue starts spilling to scratchPath.
func NewOutputQueue(softCap int, scratchPath string, pool *alignment.Pool) *OutputQueue {
	return &OutputQueue{
		ch:   make(chan []*alignment.Group, softCap),
		pool: pool,
		path: scratchPath,
	}
}

// C exposes the delivery channel for a consumer to range over.
func (q *OutputQueue) C() <-chan []*alignment.Group { return q.ch }

// Enqueue hands a completed mini-batch to the queue. It tries a
// non-blocking send first; if the channel is full it serializes the
// batch to the scratch file instead and immediately returns the
// batch's groups to pool, since their payload now lives on disk.
func (q *OutputQueue) Enqueue(batch []*alignment.Group) error {
	select {
	case q.ch <- batch:
		return nil
	default:
	}
	if err := q.spill(batch); err != nil {
		return err
	}
	for _, g := range batch {
		q.pool.Return(g)
	}
	return nil
}

func (q *OutputQueue) spill(batch []*alignment.Group) error {
	q.spillMu.Lock()
	defer q.spillMu.Unlock()
	if q.f == nil {
		f, err := os.Create(q.path)
		if err != nil {
			return err
		}
		q.f = f
		q.zw, err = zstd.NewWriter(f)
		if err != nil {
			return err
		}
	}
	for _, g := range batch {
		if err := cache.WriteGroup(q.zw, g); err != nil {
			return err
		}
		q.spilled++
	}
	return nil
}

// Close signals no more batches will be enqueued: any records that were
// spilled to disk are read back, rebatched and pushed onto the channel,
// then the channel is closed. Safe to call exactly once, after every
// producer has returned.
func (q *OutputQueue) Close() error {
	q.spillMu.Lock()
	hadSpill := q.f != nil
	q.spillMu.Unlock()
	if !hadSpill {
		close(q.ch)
		return nil
	}
	if err := q.zw.Close(); err != nil {
		q.f.Close()
		return err
	}
	if err := q.f.Close(); err != nil {
		return err
	}

	rf, err := os.Open(q.path)
	if err != nil {
		return err
	}
	zr, err := zstd.NewReader(rf)
	if err != nil {
		rf.Close()
		return err
	}
	br := bufio.NewReader(zr)

	const drainBatch = 64
	batch := make([]*alignment.Group, 0, drainBatch)
	for i := uint64(0); i < q.spilled; i++ {
		g := q.pool.Checkout()
		if err := cache.ReadGroup(br, g); err != nil {
			zr.Close()
			rf.Close()
			return err
		}
		batch = append(batch, g)
		if len(batch) == drainBatch {
			q.ch <- batch
			batch = make([]*alignment.Group, 0, drainBatch)
		}
	}
	if len(batch) > 0 {
		q.ch <- batch
	}
	zr.Close()
	rf.Close()
	close(q.ch)
	return os.Remove(q.path)
}
