//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package chainscore turns a transcript's forward and reverse-complement
// vote lists into a single best-position coverage score, by greedily
// clustering votes on their implied transcript start position.
package chainscore

import (
	"sort"

	"github.com/homologus/kallimass/lib/seedcollect"
)

// Result is the outcome of chaining one transcript's vote lists.
type Result struct {
	BestPos   int32
	BestCount uint32
	BestScore float64
	IsForward bool
}

type clusterInfo struct {
	coverage      uint32
	rightmostBase int32
}

// ComputeBestChain clusters Votes and RCVotes independently by votePos and
// reports whichever strand produced the higher-coverage cluster. Ties
// (equal coverage) favor the forward strand, since it is scored first and
// the reverse pass only overwrites on a strictly greater coverage.
func ComputeBestChain(hl *seedcollect.HitList, readLen int) Result {
	votes := append([]seedcollect.KmerVote(nil), hl.Votes...)
	rcVotes := append([]seedcollect.KmerVote(nil), hl.RCVotes...)
	sortVotes(votes)
	sortVotes(rcVotes)

	var bestPos int32
	var bestCount uint32

	bestPos, bestCount, _ = bestLoc(votes, bestPos, bestCount)
	revBestPos, revBestCount, revUpdated := bestLoc(rcVotes, bestPos, bestCount)
	if revUpdated {
		bestPos, bestCount = revBestPos, revBestCount
	}

	var score float64
	if readLen > 0 {
		score = float64(bestCount) / float64(readLen)
	}
	return Result{
		BestPos:   bestPos,
		BestCount: bestCount,
		BestScore: score,
		IsForward: !revUpdated,
	}
}

func sortVotes(votes []seedcollect.KmerVote) {
	sort.SliceStable(votes, func(i, j int) bool {
		if votes[i].VotePos == votes[j].VotePos {
			return votes[i].ReadPos < votes[j].ReadPos
		}
		return votes[i].VotePos < votes[j].VotePos
	})
}

// bestLoc is the port of TranscriptHitList::computeBestLoc_: it clusters
// sVotes by votePos (starting a new cluster whenever the gap from the
// current cluster anchor exceeds 10), accumulating the portion of each
// vote's length not already covered by the cluster's rightmost base, and
// returns the best cluster seen — starting from (curBestPos, curBestCount)
// so the reverse pass can continue a shared running maximum, matching the
// original's shared maxClusterCount across both calls. updated reports
// whether this call raised the running maximum.
func bestLoc(sVotes []seedcollect.KmerVote, curBestPos int32, curBestCount uint32) (bestPos int32, bestCount uint32, updated bool) {
	bestPos, bestCount = curBestPos, curBestCount
	if len(sVotes) == 0 {
		return bestPos, bestCount, false
	}

	hitMap := make(map[int32]*clusterInfo)
	currClust := sVotes[0].VotePos

	for _, v := range sVotes {
		votePos := v.VotePos
		readPos := v.ReadPos
		voteLen := v.VoteLen

		if votePos-currClust > 10 {
			currClust = votePos
		}
		info := hitMap[currClust]
		if info == nil {
			info = &clusterInfo{}
			hitMap[currClust] = info
		}

		// Mirrors the original's uint32_t arithmetic (including its
		// implicit signed-to-unsigned conversion of votePos) exactly, so
		// the covered-portion computation wraps the same way it does
		// there if rightmostBase is ever ahead of this vote's span.
		sum := uint32(votePos) + readPos + voteLen
		covered := sum - uint32(info.rightmostBase)
		inc := voteLen
		if covered < inc {
			inc = covered
		}
		info.coverage += inc
		info.rightmostBase = int32(sum)

		if info.coverage > bestCount {
			bestCount = info.coverage
			bestPos = currClust
			updated = true
		}
	}
	return bestPos, bestCount, updated
}
