//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package cluster implements the transcript-cluster forest: a union-find
// over transcript ids, augmented with a per-root mass accumulator and
// member set, merging transcripts that share ambiguous fragments.
package cluster

import (
	"sort"
	"sync"

	"gopkg.in/fatih/set.v0"

	"github.com/homologus/kallimass/lib/logspace"
)

type node struct {
	parent uint32
	rank   uint32
	mu     sync.Mutex
	mass   float64
	count  int64
	// members is populated only at roots; non-root nodes keep a nil set
	// until they are union'd away, at which point their set is merged
	// into the new root's and discarded.
	members set.Interface
}

// Forest is a union-find over dense transcript ids [0,N), one singleton
// cluster per transcript at construction.
type Forest struct {
	nodes []*node
}

// New builds a Forest with n singleton clusters.
func New(n int) *Forest {
	f := &Forest{nodes: make([]*node, n)}
	for i := 0; i < n; i++ {
		nd := &node{parent: uint32(i), mass: logspace.LOG0}
		nd.members = set.New(set.ThreadSafe)
		nd.members.Add(uint32(i))
		f.nodes[i] = nd
	}
	return f
}

// find returns the root id of tid, compressing the path as it walks up.
// Callers must not hold any node lock when calling find.
func (f *Forest) find(tid uint32) uint32 {
	root := tid
	for f.nodes[root].parent != root {
		root = f.nodes[root].parent
	}
	// Path compression: point every visited node directly at root.
	for f.nodes[tid].parent != root {
		next := f.nodes[tid].parent
		f.nodes[tid].parent = root
		tid = next
	}
	return root
}

// Root returns the current root transcript id of tid's cluster.
func (f *Forest) Root(tid uint32) uint32 {
	return f.find(tid)
}

// Mass returns the current mass at tid's cluster root.
func (f *Forest) Mass(tid uint32) float64 {
	root := f.find(tid)
	nd := f.nodes[root]
	nd.mu.Lock()
	defer nd.mu.Unlock()
	return nd.mass
}

// Members returns a snapshot of the transcript ids in tid's cluster.
func (f *Forest) Members(tid uint32) []uint32 {
	root := f.find(tid)
	nd := f.nodes[root]
	nd.mu.Lock()
	defer nd.mu.Unlock()
	out := make([]uint32, 0, nd.members.Size())
	for _, v := range nd.members.List() {
		out = append(out, v.(uint32))
	}
	return out
}

// UpdateCluster finds tid's root, optionally adds countDelta to the root's
// count, and always log-adds logForgettingMass into the root's mass.
func (f *Forest) UpdateCluster(tid uint32, countDelta int64, logForgettingMass float64, updateCounts bool) {
	root := f.find(tid)
	nd := f.nodes[root]
	nd.mu.Lock()
	defer nd.mu.Unlock()
	if updateCounts {
		nd.count += countDelta
	}
	nd.mass = logspace.Add(nd.mass, logForgettingMass)
}

// MergeClusters unions the roots of every transcript id referenced by a
// non-empty set of alignments. Roots are locked in sorted-root-id order
// to avoid deadlock, tie-broken by rank then smaller id, matching a
// standard weighted-union-by-rank discipline.
func (f *Forest) MergeClusters(tids []uint32) {
	if len(tids) == 0 {
		return
	}
	roots := make(map[uint32]bool)
	for _, tid := range tids {
		roots[f.find(tid)] = true
	}
	if len(roots) <= 1 {
		return
	}
	sorted := make([]uint32, 0, len(roots))
	for r := range roots {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// Merge left-to-right: keep a running "current root" and union the
	// next one into it. Locking two at a time in ascending id order
	// prevents the classic AB/BA deadlock between concurrent merges.
	cur := sorted[0]
	for _, next := range sorted[1:] {
		cur = f.union(cur, next)
	}
}

// union merges the clusters rooted at a and b and returns the id of the
// surviving root. It re-resolves roots and retries if a concurrent merge
// moved one of them between find() and lock acquisition.
func (f *Forest) union(a, b uint32) uint32 {
	for {
		a = f.find(a)
		b = f.find(b)
		if a == b {
			return a
		}
		first, second := a, b
		if first > second {
			first, second = second, first
		}
		na, nb := f.nodes[first], f.nodes[second]
		na.mu.Lock()
		nb.mu.Lock()

		if na.parent != first || nb.parent != second {
			// One of the roots was merged away by a concurrent call
			// between find() and lock acquisition; retry from scratch.
			nb.mu.Unlock()
			na.mu.Unlock()
			continue
		}

		winner, loser := na, nb
		winnerID := first
		if na.rank < nb.rank {
			winner, loser = nb, na
			winnerID = second
		}
		loser.parent = winnerID
		winner.mass = logspace.Add(winner.mass, loser.mass)
		winner.count += loser.count
		for _, v := range loser.members.List() {
			winner.members.Add(v)
		}
		loser.members = nil
		if winner.rank == loser.rank {
			winner.rank++
		}
		nb.mu.Unlock()
		na.mu.Unlock()
		return winnerID
	}
}
