//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package em runs the online mini-batch EM step: per-fragment alignment
// normalization (E-step), per-transcript mass accumulation (M-step), the
// forgetting-factor schedule, and the bookkeeping counters that gate
// burn-in and drive the fragment-length-distribution sampling rate.
package em

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cluster"
	"github.com/homologus/kallimass/lib/fld"
	"github.com/homologus/kallimass/lib/libformat"
	"github.com/homologus/kallimass/lib/logspace"
	"github.com/homologus/kallimass/lib/transcript"
)

// burnInTarget is the assigned-fragment count at which burn-in completes
// and frag-length-distribution sampling stops.
const burnInTarget = 5_000_000

// Params gates the two optional likelihood terms of the E-step.
type Params struct {
	UseFragLenDist bool
	UseReadCompat  bool
	ExpectedFormat libformat.Format
}

// Accumulator holds every piece of state a mini-batch EM step mutates:
// the transcript table, the cluster forest, the fragment-length
// distribution, the forgetting-factor scalar and batch counter, and the
// bookkeeping atomics. It is shared read/write across worker goroutines,
// one per pipeline (spec.md §3 "Lifecycle").
type Accumulator struct {
	Transcripts *transcript.Table
	Forest      *cluster.Forest
	FLD         *fld.Distribution

	// mu guards the forgetting-factor scalar and the batch counter
	// together, so batch-number acquisition and the mass update it
	// gates stay linearizable (spec.md §4.8 "Ordering").
	mu                sync.Mutex
	logForgettingMass float64
	batchNum          uint64

	numObservedFragments uint64
	numAssignedFragments uint64
	totalAssignedBase    uint64
	burnedIn             uint32

	libTypeMu     sync.Mutex
	libTypeCounts map[uint8]int64
}

// NewAccumulator wires an Accumulator to the tables it will mutate. The
// forgetting-factor scalar starts at LOG_1 (no forgetting before the
// first batch) and the batch counter at zero.
func NewAccumulator(transcripts *transcript.Table, forest *cluster.Forest, lengthDist *fld.Distribution) *Accumulator {
	return &Accumulator{
		Transcripts:       transcripts,
		Forest:            forest,
		FLD:               lengthDist,
		logForgettingMass: logspace.LOG1,
		libTypeCounts:     make(map[uint8]int64),
	}
}

// BurnedIn reports whether num_assigned_fragments has crossed the
// burn-in target.
func (a *Accumulator) BurnedIn() bool { return atomic.LoadUint32(&a.burnedIn) != 0 }

// NumObservedFragments counts every fragment the pipeline has handed to
// ProcessBatch, assigned or not.
func (a *Accumulator) NumObservedFragments() uint64 {
	return atomic.LoadUint64(&a.numObservedFragments)
}

// NumAssignedFragments counts fragments whose E-step normalization
// succeeded (S != LOG_0).
func (a *Accumulator) NumAssignedFragments() uint64 {
	return atomic.LoadUint64(&a.numAssignedFragments)
}

// SoftReset folds the current pass's observed/assigned counters into the
// totals it returns, then zeros them ahead of a cache-replay pass,
// preserving transcript masses, the cluster forest, the forgetting-factor
// scalar and the batch counter (spec.md §4.9 "soft-reset"). The assigned
// delta is also folded into an internal running total so a later burn-in
// check still sees fragments assigned in earlier passes.
func (a *Accumulator) SoftReset() (observed, assigned uint64) {
	observed = atomic.SwapUint64(&a.numObservedFragments, 0)
	assigned = atomic.SwapUint64(&a.numAssignedFragments, 0)
	atomic.AddUint64(&a.totalAssignedBase, assigned)
	return observed, assigned
}

// LogForgettingMass returns the current forgetting-factor scalar.
func (a *Accumulator) LogForgettingMass() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logForgettingMass
}

// LibTypeCounts returns a snapshot of per-format-id alignment counts
// accumulated so far, keyed by libformat.Format.ID.
func (a *Accumulator) LibTypeCounts() map[uint8]int64 {
	a.libTypeMu.Lock()
	defer a.libTypeMu.Unlock()
	out := make(map[uint8]int64, len(a.libTypeCounts))
	for id, n := range a.libTypeCounts {
		out[id] = n
	}
	return out
}

func (a *Accumulator) recordLibType(id uint8) {
	a.libTypeMu.Lock()
	a.libTypeCounts[id]++
	a.libTypeMu.Unlock()
}

// nextBatch advances the global batch counter and, for every batch from
// the second on, folds in the forgetting-factor recurrence (spec.md
// §4.7): log_forgetting_mass += 0.65*log(k-1) - log(k^0.65 - 1). It
// returns the mass every fragment in the batch about to run should use.
func (a *Accumulator) nextBatch() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batchNum++
	k := float64(a.batchNum)
	if a.batchNum >= 2 {
		a.logForgettingMass += 0.65*math.Log(k-1) - math.Log(math.Pow(k, 0.65)-1)
	}
	return a.logForgettingMass
}

// ProcessBatch runs the E-step then the M-step over one mini-batch of
// filled AlignmentGroups (spec.md §4.7). updateCounts should be true
// only while running the pass that owns total_count/unique_count
// bookkeeping (the first pass over a fresh transcript table).
func (a *Accumulator) ProcessBatch(groups []*alignment.Group, params Params, updateCounts bool) {
	logForgettingMass := a.nextBatch()

	var localAssigned int64
	massByTranscript := make(map[uint32][]float64)

	for _, g := range groups {
		if g.Len() == 0 {
			continue
		}
		if a.eStep(g, params, updateCounts, logForgettingMass) {
			localAssigned++
			for i := range g.Alignments {
				al := &g.Alignments[i]
				massByTranscript[al.TranscriptID] = append(massByTranscript[al.TranscriptID], al.LogProb)
			}
		}
	}

	for tid, logProbs := range massByTranscript {
		hitMass := logspace.SumExp(logProbs...)
		a.Transcripts.Get(tid).AddMass(logForgettingMass + hitMass)
	}

	atomic.AddUint64(&a.numObservedFragments, uint64(len(groups)))
	if localAssigned > 0 {
		newTotal := atomic.AddUint64(&a.numAssignedFragments, uint64(localAssigned))
		if atomic.LoadUint64(&a.totalAssignedBase)+newTotal >= burnInTarget {
			atomic.StoreUint32(&a.burnedIn, 1)
		}
	}
}

// eStep runs steps 1-5 of spec.md §4.7 on one non-empty group, mutating
// each alignment's LogProb in place and returning whether the fragment
// was assigned (S != LOG_0).
func (a *Accumulator) eStep(g *alignment.Group, params Params, updateCounts bool, logForgettingMass float64) bool {
	seen := make(map[uint32]bool, g.Len())
	distinctTids := make([]uint32, 0, g.Len())

	for i := range g.Alignments {
		al := &g.Alignments[i]
		t := a.Transcripts.Get(al.TranscriptID)
		tMass := t.Mass()
		if tMass == logspace.LOG0 {
			al.LogProb = logspace.LOG0
		} else {
			logFragProb := logspace.LOG1
			if params.UseFragLenDist && al.FragLength > 0 {
				logFragProb = a.FLD.Pmf(int(al.FragLength))
			}
			logCompatProb := logspace.LOG1
			if params.UseReadCompat {
				logCompatProb = libformat.Compat(al.Format, params.ExpectedFormat)
			}
			al.LogProb = (tMass - math.Log(float64(t.Length()))) + logFragProb + logCompatProb
		}
		a.recordLibType(al.Format.ID)
		if !seen[al.TranscriptID] {
			seen[al.TranscriptID] = true
			distinctTids = append(distinctTids, al.TranscriptID)
			if updateCounts {
				t.AddTotalCount()
			}
		}
	}

	logProbs := make([]float64, len(g.Alignments))
	for i := range g.Alignments {
		logProbs[i] = g.Alignments[i].LogProb
	}
	s := logspace.SumExp(logProbs...)
	if s == logspace.LOG0 {
		return false
	}
	for i := range g.Alignments {
		g.Alignments[i].LogProb -= s
	}

	if !a.BurnedIn() {
		for i := range g.Alignments {
			al := &g.Alignments[i]
			if al.FragLength > 0 && rand.Float64() < math.Exp(al.LogProb) {
				a.FLD.AddVal(int(al.FragLength), logForgettingMass)
			}
		}
	}

	if len(distinctTids) == 1 {
		tid := distinctTids[0]
		if updateCounts {
			a.Transcripts.Get(tid).AddUniqueCount()
		}
		a.Forest.UpdateCluster(tid, 1, logForgettingMass, updateCounts)
	} else {
		a.Forest.MergeClusters(distinctTids)
		a.Forest.UpdateCluster(g.Alignments[0].TranscriptID, 1, logForgettingMass, updateCounts)
	}

	return true
}
