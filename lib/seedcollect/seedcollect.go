//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package seedcollect runs the three-pass MEM collection over a read
// against an external seed index, groups occurrences by transcript, and
// splits occurrences that straddle a transcript boundary.
package seedcollect

import (
	"github.com/homologus/kallimass/lib/seedindex"
)

// KmerVote is one seed's implied read-start position on a transcript.
type KmerVote struct {
	VotePos int32
	ReadPos uint32
	VoteLen uint32
}

// HitList holds the per-transcript votes found for one read, split by
// strand: Votes for forward-orientation occurrences, RCVotes for
// reverse-complement ones.
type HitList struct {
	Votes   []KmerVote
	RCVotes []KmerVote
}

// Params bundles the collector's tunable thresholds; zero-value Params
// is invalid, use DefaultParams.
type Params struct {
	MinSeedLen    int
	SplitFactor   float64
	SplitWidth    int
	MaxOcc        int
	ExtraSeedPass bool
	MaxMemIntv    int
	SplitSpanning bool
}

// DefaultParams mirrors the original quantifier's command-line defaults:
// minLen=19, maxOcc=200, splitFactor=1.5, splitWidth=0, extra pass off.
func DefaultParams() Params {
	return Params{
		MinSeedLen:    19,
		SplitFactor:   1.5,
		SplitWidth:    0,
		MaxOcc:        200,
		ExtraSeedPass: false,
		MaxMemIntv:    0,
		SplitSpanning: true,
	}
}

// Collect runs the three-pass MEM search over bases (baseLen valid bases)
// against it, and returns a map from transcript id to the HitList
// accumulated for that transcript.
func Collect(idx seedindex.Index, bases []byte, baseLen int, p Params) map[uint32]*HitList {
	it := idx.SeedIteratorFor(bases, baseLen)
	hits := make(map[uint32]*HitList)

	mems := smemPass(it, baseLen, p)
	mems = append(mems, reseedPass(it, mems, p)...)
	if p.ExtraSeedPass && p.MaxMemIntv > 0 {
		mems = append(mems, it.ExtraSensitive(p.MaxMemIntv)...)
	}

	for _, mem := range mems {
		emitOccurrences(idx, it, mem, uint32(baseLen), hits, p)
	}
	return hits
}

// smemPass walks the read left-to-right taking the SMEM starting at each
// position, keeping those at least MinSeedLen long.
func smemPass(it seedindex.SeedIterator, baseLen int, p Params) []seedindex.MEM {
	var out []seedindex.MEM
	for x := 0; x < baseLen; {
		mem, ok := it.SMEMAt(x)
		if !ok {
			x++
			continue
		}
		if mem.Length >= p.MinSeedLen {
			out = append(out, mem)
		}
		if mem.QueryStart+mem.Length > x {
			x = mem.QueryStart + mem.Length
		} else {
			x++
		}
	}
	return out
}

// reseedPass re-seeds from the midpoint of every SMEM long enough (>=
// MinSeedLen*SplitFactor) and rare enough (NumOcc <= SplitWidth) to be
// worth decomposing further, keeping contained MEMs >= MinSeedLen.
func reseedPass(it seedindex.SeedIterator, smems []seedindex.MEM, p Params) []seedindex.MEM {
	splitLen := int(float64(p.MinSeedLen)*p.SplitFactor + 0.499)
	var out []seedindex.MEM
	for _, mem := range smems {
		if mem.Length < splitLen || mem.NumOcc > p.SplitWidth {
			continue
		}
		midpoint := mem.QueryStart + mem.Length/2
		for _, inner := range it.Reseed(mem, midpoint) {
			if inner.Length >= p.MinSeedLen {
				out = append(out, inner)
			}
		}
	}
	return out
}

// emitOccurrences resolves every sampled occurrence of mem, splitting
// boundary-crossing occurrences or discarding them per p.SplitSpanning,
// and appends the resulting KmerVote(s) to hits.
func emitOccurrences(idx seedindex.Index, it seedindex.SeedIterator, mem seedindex.MEM, readLen uint32, hits map[uint32]*HitList, p Params) {
	step := 1
	if mem.NumOcc > p.MaxOcc {
		step = mem.NumOcc / p.MaxOcc
	}
	count := 0
	for k := 0; k < mem.NumOcc && count < p.MaxOcc; k += step {
		count++
		global := it.Occurrence(mem, k)
		transcriptID, localPos, isReverse, ok := idx.Resolve(global)
		if !ok {
			// Straddles the forward/reverse-complement boundary: discard.
			continue
		}
		_, tlen, _ := idx.TranscriptAt(transcriptID)

		hitLoc := int(localPos)
		slen := mem.Length
		queryStart := mem.QueryStart
		rlen := int(readLen)

		// A real index signals a transcript-boundary-spanning occurrence
		// by resolving hitLoc+slen past tlen; split or discard it.
		if hitLoc+slen > tlen {
			ok := splitSpanningSeed(idx, p, isReverse, &transcriptID, &hitLoc, &slen, &queryStart, &rlen, tlen)
			if !ok {
				continue
			}
		}

		vote := KmerVote{ReadPos: uint32(queryStart), VoteLen: uint32(slen)}
		hl := hits[transcriptID]
		if hl == nil {
			hl = &HitList{}
			hits[transcriptID] = hl
		}
		if isReverse {
			vote.VotePos = int32(hitLoc) - (int32(rlen) - int32(queryStart))
			hl.RCVotes = append(hl.RCVotes, vote)
		} else {
			vote.VotePos = int32(hitLoc) - int32(queryStart)
			hl.Votes = append(hl.Votes, vote)
		}
	}
}

// splitSpanningSeed implements the forward/reverse split arithmetic from
// the boundary-crossing branch: the longer side of the split survives if
// it (max(len1,len2)) is >= MinSeedLen. Mutates transcriptID/hitLoc/slen/queryStart/
// rlen in place to describe the kept side; returns false if the seed
// should be discarded entirely.
func splitSpanningSeed(idx seedindex.Index, p Params, isReverse bool, transcriptID *uint32, hitLoc, slen, queryStart, rlen *int, tlen int) bool {
	if !p.SplitSpanning {
		return false
	}
	nextID := *transcriptID + 1
	if nextID >= uint32(idx.NumTranscripts()) {
		return false
	}

	if !isReverse {
		// packed: t1 ===========|t2|==========>  hit: |==========>
		len1 := tlen - *hitLoc
		len2 := *slen - len1
		if max(len1, len2) < p.MinSeedLen {
			return false
		}
		if len1 >= len2 {
			*slen = len1
		} else {
			*transcriptID = nextID
			*hitLoc = 0
			*slen = len2
			*queryStart += len1
		}
		return true
	}

	// reverse: hit crosses the boundary going right-to-left in read space.
	len2 := *hitLoc
	len1 := *slen - len2
	if max(len1, len2) < p.MinSeedLen {
		return false
	}
	if len1 >= len2 {
		*slen = len1
		*hitLoc = tlen - len2
		*queryStart += len2
		*rlen -= len2
	} else {
		*transcriptID = nextID
		*slen = len2
		*hitLoc = len2
		*rlen = *hitLoc + *queryStart
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
