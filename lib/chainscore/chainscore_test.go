//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package chainscore

import (
	"testing"

	"github.com/homologus/kallimass/lib/seedcollect"
)

// S1 — a single perfect-coverage vote spanning the whole 8bp read yields
// best_count=8, best_score=1.0, is_forward=true, best_pos=0.
func TestComputeBestChainSingleVote(t *testing.T) {
	hl := &seedcollect.HitList{
		Votes: []seedcollect.KmerVote{{VotePos: 0, ReadPos: 0, VoteLen: 8}},
	}
	r := ComputeBestChain(hl, 8)
	if r.BestCount != 8 {
		t.Errorf("BestCount = %d, want 8", r.BestCount)
	}
	if r.BestScore != 1.0 {
		t.Errorf("BestScore = %v, want 1.0", r.BestScore)
	}
	if !r.IsForward {
		t.Errorf("IsForward = false, want true")
	}
	if r.BestPos != 0 {
		t.Errorf("BestPos = %d, want 0", r.BestPos)
	}
}

// Two abutting, non-overlapping votes at the same cluster accumulate
// coverage additively.
func TestComputeBestChainAccumulatesNonOverlapping(t *testing.T) {
	hl := &seedcollect.HitList{
		Votes: []seedcollect.KmerVote{
			{VotePos: 0, ReadPos: 0, VoteLen: 5},
			{VotePos: 0, ReadPos: 5, VoteLen: 5},
		},
	}
	r := ComputeBestChain(hl, 10)
	if r.BestCount != 10 {
		t.Errorf("BestCount = %d, want 10", r.BestCount)
	}
}

// An overlapping second vote only contributes the portion not already
// covered by the first.
func TestComputeBestChainClipsOverlap(t *testing.T) {
	hl := &seedcollect.HitList{
		Votes: []seedcollect.KmerVote{
			{VotePos: 0, ReadPos: 0, VoteLen: 6},
			{VotePos: 0, ReadPos: 3, VoteLen: 6}, // overlaps bases [3,6), adds only [6,9)
		},
	}
	r := ComputeBestChain(hl, 9)
	if r.BestCount != 9 {
		t.Errorf("BestCount = %d, want 9", r.BestCount)
	}
}

// A vote more than 10 past the current cluster anchor starts a new,
// independent cluster.
func TestComputeBestChainSplitsFarVotes(t *testing.T) {
	hl := &seedcollect.HitList{
		Votes: []seedcollect.KmerVote{
			{VotePos: 0, ReadPos: 0, VoteLen: 5},
			{VotePos: 50, ReadPos: 0, VoteLen: 20},
		},
	}
	r := ComputeBestChain(hl, 25)
	if r.BestCount != 20 {
		t.Errorf("BestCount = %d, want 20 (the larger, separate cluster)", r.BestCount)
	}
	if r.BestPos != 50 {
		t.Errorf("BestPos = %d, want 50", r.BestPos)
	}
}

// Coverage monotonicity (property 1): processing any prefix of the sorted
// vote order never yields a higher best_count than processing the full
// list, and best_score stays in [0,1].
func TestComputeBestChainCoverageMonotonic(t *testing.T) {
	full := []seedcollect.KmerVote{
		{VotePos: 0, ReadPos: 0, VoteLen: 4},
		{VotePos: 0, ReadPos: 4, VoteLen: 4},
		{VotePos: 0, ReadPos: 8, VoteLen: 4},
		{VotePos: 20, ReadPos: 0, VoteLen: 10},
	}
	readLen := 20
	fullCount := ComputeBestChain(&seedcollect.HitList{Votes: full}, readLen).BestCount

	for n := 1; n <= len(full); n++ {
		prefix := append([]seedcollect.KmerVote(nil), full[:n]...)
		r := ComputeBestChain(&seedcollect.HitList{Votes: prefix}, readLen)
		if r.BestCount > fullCount {
			t.Errorf("prefix(%d) BestCount = %d exceeds full BestCount = %d", n, r.BestCount, fullCount)
		}
		if r.BestScore < 0 || r.BestScore > 1 {
			t.Errorf("prefix(%d) BestScore = %v out of [0,1]", n, r.BestScore)
		}
	}
}

// Forward votes win ties against reverse votes of equal coverage, since
// the forward pass is scored first and the reverse pass only overwrites
// on a strictly greater coverage.
func TestComputeBestChainForwardWinsTies(t *testing.T) {
	hl := &seedcollect.HitList{
		Votes:   []seedcollect.KmerVote{{VotePos: 0, ReadPos: 0, VoteLen: 10}},
		RCVotes: []seedcollect.KmerVote{{VotePos: 100, ReadPos: 0, VoteLen: 10}},
	}
	r := ComputeBestChain(hl, 10)
	if !r.IsForward {
		t.Errorf("IsForward = false, want true on a tie")
	}
	if r.BestPos != 0 {
		t.Errorf("BestPos = %d, want 0 (the forward cluster)", r.BestPos)
	}
}

// A strictly better reverse-complement cluster overrides the forward one.
func TestComputeBestChainReverseWinsWhenStrictlyBetter(t *testing.T) {
	hl := &seedcollect.HitList{
		Votes:   []seedcollect.KmerVote{{VotePos: 0, ReadPos: 0, VoteLen: 5}},
		RCVotes: []seedcollect.KmerVote{{VotePos: 100, ReadPos: 0, VoteLen: 15}},
	}
	r := ComputeBestChain(hl, 15)
	if r.IsForward {
		t.Errorf("IsForward = true, want false")
	}
	if r.BestCount != 15 {
		t.Errorf("BestCount = %d, want 15", r.BestCount)
	}
}

func TestComputeBestChainEmptyHitList(t *testing.T) {
	r := ComputeBestChain(&seedcollect.HitList{}, 10)
	if r.BestCount != 0 || r.BestPos != 0 {
		t.Errorf("expected zero-value result on an empty hit list, got %+v", r)
	}
}
