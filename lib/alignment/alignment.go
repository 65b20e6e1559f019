//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package alignment holds the per-fragment alignment tuple, its lazy
// group container, and a bounded pool of groups the pipeline checks out
// and returns instead of allocating per fragment.
package alignment

import (
	"sync"

	"github.com/homologus/kallimass/lib/libformat"
)

// Alignment is one transcript's compatibility record for a fragment.
type Alignment struct {
	TranscriptID uint32
	Format       libformat.Format
	Score        float64
	FragLength   uint32
	LogProb      float64
}

// Group is the lazy container for every alignment emitted for one
// fragment; a zero-length Group (no mappings) is legal.
type Group struct {
	Alignments []Alignment
}

// Reset clears a Group for reuse without releasing its backing array.
func (g *Group) Reset() {
	g.Alignments = g.Alignments[:0]
}

// Add appends one alignment to the group.
func (g *Group) Add(a Alignment) {
	g.Alignments = append(g.Alignments, a)
}

// Len returns the number of alignments currently in the group.
func (g *Group) Len() int { return len(g.Alignments) }

// Pool is a bounded, growable set of reusable Groups, checked out per
// fragment and returned after the EM step (or the cache writer) so
// steady-state allocation is zero (spec.md §3 "Lifecycle"). Modeled on
// the teacher's Cache/Grow growable-slice pattern, generalized from
// fixed-shape count packets to variably-sized alignment groups; backed
// by a mutex-guarded free list rather than a channel so Grow can extend
// capacity without recreating a fixed-size buffer.
type Pool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	total int
	free  []*Group
}

// NewPool preallocates size Groups, all immediately available for
// checkout.
func NewPool(size int) *Pool {
	p := &Pool{total: size, free: make([]*Group, size)}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.free {
		p.free[i] = &Group{}
	}
	return p
}

// Grow adds 50% more capacity, mirroring the teacher's Cache.Grow ratio.
func (p *Pool) Grow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	nsize := int(float64(p.total) * 1.5)
	if nsize <= p.total {
		nsize = p.total + 1
	}
	for i := p.total; i < nsize; i++ {
		p.free = append(p.free, &Group{})
	}
	p.total = nsize
	p.cond.Broadcast()
}

// Checkout blocks until a Group is available, then returns it cleared
// for reuse.
func (p *Pool) Checkout() *Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) == 0 {
		p.cond.Wait()
	}
	g := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	g.Reset()
	return g
}

// TryCheckout returns a cleared Group without blocking, or nil and false
// if the pool is momentarily exhausted.
func (p *Pool) TryCheckout() (*Group, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, false
	}
	g := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	g.Reset()
	return g, true
}

// Return releases a Group back to the pool for reuse.
func (p *Pool) Return(g *Group) {
	p.mu.Lock()
	p.free = append(p.free, g)
	p.mu.Unlock()
	p.cond.Signal()
}

// Cap reports the pool's current total capacity.
func (p *Pool) Cap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
