//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package hitassembler turns per-mate chain-scoring results into a
// fragment-level AlignmentGroup, gating on a coverage threshold and the
// max_read_occs multi-mapping discard rule.
package hitassembler

import (
	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/chainscore"
	"github.com/homologus/kallimass/lib/libformat"

	"gopkg.in/fatih/set.v0"
)

// PerTranscript is one transcript's chain result for one mate, keyed by
// transcript id by the caller.
type PerTranscript = chainscore.Result

// AssembleSingle scores a single-end fragment: one alignment per
// transcript whose best_score clears coverageThresh. If the resulting
// group would exceed maxReadOccs alignments, it is cleared entirely
// (spec.md §4.6 "multi-mapping garbage" discard rule).
func AssembleSingle(hits map[uint32]PerTranscript, readLen int, coverageThresh float64, maxReadOccs int, g *alignment.Group) {
	g.Reset()
	for tid, r := range hits {
		// Default to not keeping a candidate; only a passing score
		// commits it to the group.
		if r.BestScore < coverageThresh {
			continue
		}
		g.Add(alignment.Alignment{
			TranscriptID: tid,
			Format:       libformat.HitType(r.IsForward),
			Score:        r.BestScore,
			FragLength:   uint32(readLen),
		})
	}
	applyMultiMappingDiscard(g, maxReadOccs)
}

// AssemblePaired scores a paired-end fragment: intersects the two mates'
// per-transcript chain results by transcript id, requiring both sides to
// clear coverageThresh, then emits one alignment per shared transcript.
// Like AssembleSingle, the group is cleared if it ends up larger than
// maxReadOccs.
func AssemblePaired(leftHits, rightHits map[uint32]PerTranscript, rightReadLen int, coverageThresh float64, maxReadOccs int, g *alignment.Group) {
	g.Reset()

	leftSet := set.New(set.NonThreadSafe)
	for tid := range leftHits {
		leftSet.Add(tid)
	}
	rightSet := set.New(set.NonThreadSafe)
	for tid := range rightHits {
		rightSet.Add(tid)
	}
	shared := set.Intersection(leftSet, rightSet)

	shared.Each(func(item interface{}) bool {
		tid := item.(uint32)
		left := leftHits[tid]
		right := rightHits[tid]
		if left.BestScore < coverageThresh || right.BestScore < coverageThresh {
			return true
		}
		fragLength := absDiff(left.BestPos, right.BestPos) + int32(rightReadLen)
		g.Add(alignment.Alignment{
			TranscriptID: tid,
			Format:       libformat.HitTypePaired(left.BestPos, left.IsForward, right.BestPos, right.IsForward),
			Score:        (left.BestScore + right.BestScore) / 2,
			FragLength:   uint32(fragLength),
		})
		return true
	})

	applyMultiMappingDiscard(g, maxReadOccs)
}

// applyMultiMappingDiscard clears g if it holds more than maxReadOccs
// alignments; maxReadOccs <= 0 disables the filter.
func applyMultiMappingDiscard(g *alignment.Group, maxReadOccs int) {
	if maxReadOccs > 0 && g.Len() > maxReadOccs {
		g.Reset()
	}
}

func absDiff(a, b int32) int32 {
	if a > b {
		return a - b
	}
	return b - a
}
