//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package main

import (
	"index/suffixarray"
	"sort"

	"github.com/homologus/kallimass/lib/seedindex"
)

// naiveIndex is a reference seedindex.Index good enough to run this
// binary end-to-end against a FASTA reference. It is not the BWT/FM
// index the core's contract describes -- building one is explicitly out
// of scope (spec.md §1) -- and no suffix-array/BWT library appears
// anywhere in the reference pack, so this is the one place in the tree
// that reaches for the standard library (index/suffixarray) instead of
// a third-party package. SMEMAt is a greedy longest-admissible-suffix
// search rather than a true supermaximal-extension algorithm.
type naiveIndex struct {
	names    []string
	lengths  []int
	spans    []transcriptSpan // one per transcript, forward half
	rcSpans  []transcriptSpan // one per transcript, reverse-complement half
	fwdLen   int              // length of the forward half within combined
	combined []byte
	sa       *suffixarray.Index
	maxOcc   int
	minSeed  int
}

type transcriptSpan struct {
	id     uint32
	start  int
	length int
}

// newNaiveIndex builds the combined forward + reverse-complement corpus
// and its suffix array from a set of (name, sequence) pairs, in the
// order given.
func newNaiveIndex(names []string, seqs [][]byte, maxOcc, minSeed int) *naiveIndex {
	x := &naiveIndex{maxOcc: maxOcc, minSeed: minSeed}
	var fwd, rc []byte
	for i, seq := range seqs {
		x.names = append(x.names, names[i])
		x.lengths = append(x.lengths, len(seq))
		x.spans = append(x.spans, transcriptSpan{id: uint32(i), start: len(fwd), length: len(seq)})
		fwd = append(fwd, seq...)
		x.rcSpans = append(x.rcSpans, transcriptSpan{id: uint32(i), start: len(rc), length: len(seq)})
		rc = append(rc, reverseComplement(seq)...)
	}
	x.fwdLen = len(fwd)
	x.combined = append(fwd, rc...)
	x.sa = suffixarray.New(x.combined)
	return x
}

func reverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		var c byte
		switch b {
		case 'A':
			c = 'T'
		case 'C':
			c = 'G'
		case 'G':
			c = 'C'
		case 'T':
			c = 'A'
		default:
			c = 'N'
		}
		out[len(seq)-1-i] = c
	}
	return out
}

func (x *naiveIndex) NumTranscripts() int { return len(x.names) }

func (x *naiveIndex) TranscriptAt(id uint32) (string, int, int64) {
	return x.names[id], x.lengths[id], int64(x.spans[id].start)
}

func (x *naiveIndex) SeedIteratorFor(bases []byte, baseLen int) seedindex.SeedIterator {
	return &naiveIterator{idx: x, ascii: unpack2Bit(bases, baseLen)}
}

// Resolve maps an offset into the combined corpus back to a transcript.
// Spans are searched by binary search over their sorted start offsets.
func (x *naiveIndex) Resolve(globalOffset int64) (uint32, uint32, bool, bool) {
	if globalOffset < int64(x.fwdLen) {
		return resolveSpan(x.spans, int(globalOffset), false)
	}
	return resolveSpan(x.rcSpans, int(globalOffset)-x.fwdLen, true)
}

func resolveSpan(spans []transcriptSpan, offset int, isReverse bool) (uint32, uint32, bool, bool) {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].start+spans[i].length > offset })
	if i >= len(spans) || offset < spans[i].start {
		return 0, 0, false, false
	}
	local := offset - spans[i].start
	return spans[i].id, uint32(local), isReverse, true
}

// naiveIterator implements seedindex.SeedIterator by decoding the
// packed read once and running suffix-array lookups against the
// reference. Reseed and ExtraSensitive are no-ops: this demo index
// never triggers the opt-in re-seeding or extra-sensitive passes.
type naiveIterator struct {
	idx   *naiveIndex
	ascii []byte
}

func (it *naiveIterator) SMEMAt(readPos int) (seedindex.MEM, bool) {
	if readPos < 0 || readPos >= len(it.ascii) {
		return seedindex.MEM{}, false
	}
	maxLen := len(it.ascii) - readPos
	for length := maxLen; length >= it.idx.minSeed; length-- {
		query := it.ascii[readPos : readPos+length]
		offsets := it.idx.sa.Lookup(query, it.idx.maxOcc+1)
		if n := len(offsets); n > 0 && n <= it.idx.maxOcc {
			return seedindex.MEM{QueryStart: readPos, Length: length, NumOcc: n}, true
		}
	}
	return seedindex.MEM{}, false
}

func (it *naiveIterator) Reseed(mem seedindex.MEM, midpointReadPos int) []seedindex.MEM { return nil }
func (it *naiveIterator) ExtraSensitive(maxIntv int) []seedindex.MEM                    { return nil }

func (it *naiveIterator) Occurrence(mem seedindex.MEM, i int) int64 {
	query := it.ascii[mem.QueryStart : mem.QueryStart+mem.Length]
	offsets := it.idx.sa.Lookup(query, -1)
	return int64(offsets[i])
}

// packBases mirrors lib/pipeline/encode.go's 2-bit-packed layout (first
// base in the lowest-order two bits) so transcripts built here decode identically through
// transcript.Transcript.CharBaseAt.
func packBases(seq []byte) []byte {
	packed := make([]byte, (len(seq)+3)/4)
	for i, b := range seq {
		packed[i/4] |= base2bitCode(b) << (uint(i%4) * 2)
	}
	return packed
}

func base2bitCode(b byte) byte {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return 0
	}
}

// unpack2Bit is packBases's inverse, used to recover ASCII bases from
// the packed reads the pipeline hands SeedIteratorFor.
func unpack2Bit(packed []byte, baseLen int) []byte {
	const bases = "ACGT"
	out := make([]byte, baseLen)
	for i := range out {
		code := (packed[i/4] >> (uint(i%4) * 2)) & 0x3
		out[i] = bases[code]
	}
	return out
}
