//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package seedcollect

import (
	"bytes"

	"github.com/homologus/kallimass/lib/seedindex"
)

// naiveIndex is a brute-force, forward-strand-only fixture implementing
// seedindex.Index for exercising the collector against small, known
// sequences without a real suffix array. It never resolves reverse-
// complement occurrences; tests that need strand awareness belong
// elsewhere (transcript.CharBaseAt already covers RC decoding).
type naiveIndex struct {
	names  []string
	seqs   [][]byte
	concat []byte
	layout *seedindex.PackedLayout
}

func newNaiveIndex(names []string, seqs []string) *naiveIndex {
	idx := &naiveIndex{layout: seedindex.NewPackedLayout()}
	for i, s := range seqs {
		idx.names = append(idx.names, names[i])
		idx.seqs = append(idx.seqs, []byte(s))
		idx.layout.Add(uint32(i), len(s))
		idx.concat = append(idx.concat, []byte(s)...)
	}
	return idx
}

func (n *naiveIndex) NumTranscripts() int { return len(n.seqs) }

func (n *naiveIndex) TranscriptAt(id uint32) (name string, length int, seqOffset int64) {
	start, _, _ := n.layout.SpanOf(id)
	return n.names[id], len(n.seqs[id]), int64(start)
}

func (n *naiveIndex) SeedIteratorFor(bases []byte, baseLen int) seedindex.SeedIterator {
	return &naiveIterator{idx: n, read: bases[:baseLen]}
}

func (n *naiveIndex) Resolve(globalOffset int64) (transcriptID uint32, localPos uint32, isReverse bool, ok bool) {
	tid, local, found := n.layout.Locate(int(globalOffset))
	if !found {
		return 0, 0, false, false
	}
	return tid, uint32(local), false, true
}

// allOccurrences returns every offset in the concatenated reference at
// which needle occurs, brute force.
func (n *naiveIndex) allOccurrences(needle []byte) []int64 {
	var out []int64
	if len(needle) == 0 {
		return out
	}
	for start := 0; start+len(needle) <= len(n.concat); start++ {
		if bytes.Equal(n.concat[start:start+len(needle)], needle) {
			out = append(out, int64(start))
		}
	}
	return out
}

// longestMatchFrom returns the longest prefix of read[from:] that occurs
// at least once in the concatenated reference, and how many times.
func (n *naiveIndex) longestMatchFrom(read []byte, from int) (length int, numOcc int) {
	for l := len(read) - from; l >= 1; l-- {
		needle := read[from : from+l]
		occ := n.allOccurrences(needle)
		if len(occ) > 0 {
			return l, len(occ)
		}
	}
	return 0, 0
}

type naiveIterator struct {
	idx  *naiveIndex
	read []byte
}

func (it *naiveIterator) SMEMAt(readPos int) (seedindex.MEM, bool) {
	if readPos >= len(it.read) {
		return seedindex.MEM{}, false
	}
	length, numOcc := it.idx.longestMatchFrom(it.read, readPos)
	if length == 0 {
		return seedindex.MEM{}, false
	}
	return seedindex.MEM{QueryStart: readPos, Length: length, NumOcc: numOcc}, true
}

func (it *naiveIterator) Reseed(mem seedindex.MEM, midpointReadPos int) []seedindex.MEM {
	if midpointReadPos < mem.QueryStart || midpointReadPos >= mem.QueryStart+mem.Length {
		return nil
	}
	length, numOcc := it.idx.longestMatchFrom(it.read, midpointReadPos)
	maxLen := mem.QueryStart + mem.Length - midpointReadPos
	if length > maxLen {
		length = maxLen
	}
	if length == 0 {
		return nil
	}
	return []seedindex.MEM{{QueryStart: midpointReadPos, Length: length, NumOcc: numOcc}}
}

func (it *naiveIterator) ExtraSensitive(maxIntv int) []seedindex.MEM { return nil }

func (it *naiveIterator) Occurrence(mem seedindex.MEM, i int) int64 {
	needle := it.read[mem.QueryStart : mem.QueryStart+mem.Length]
	occ := it.idx.allOccurrences(needle)
	return occ[i]
}
