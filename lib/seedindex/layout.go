//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package seedindex

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// span is the interval type inserted into the layout's tree: one per
// transcript, keyed by its [offset, offset+length) range in the
// concatenated packed reference.
type span struct {
	start, end int
	id         uintptr
	transcript uint32
}

func (s span) Overlap(b interval.IntRange) bool { return s.end > b.Start && s.start < b.End }
func (s span) ID() uintptr                      { return s.id }
func (s span) Range() interval.IntRange         { return interval.IntRange{Start: s.start, End: s.end} }
func (s span) String() string                   { return fmt.Sprintf("[%d,%d)#t%d", s.start, s.end, s.transcript) }

// PackedLayout maps an absolute offset in one half (forward or
// reverse-complement) of the concatenated packed reference to the
// transcript whose span contains it, via an interval tree over
// transcript byte spans. A real Index implementation (out of scope here)
// uses this to implement Resolve; a test fixture can use it directly.
type PackedLayout struct {
	tree      *interval.IntTree
	spans     []span
	built     bool
	nextStart int
}

// NewPackedLayout returns an empty layout ready for sequential Add calls.
func NewPackedLayout() *PackedLayout {
	return &PackedLayout{tree: &interval.IntTree{}}
}

// Add appends the next transcript (by ascending id, contiguous in the
// concatenated layout) and returns its [start,end) span.
func (pl *PackedLayout) Add(transcriptID uint32, length int) (start, end int) {
	start = pl.nextStart
	end = start + length
	pl.nextStart = end
	s := span{start: start, end: end, id: uintptr(len(pl.spans)), transcript: transcriptID}
	pl.spans = append(pl.spans, s)
	pl.built = false
	return start, end
}

// TotalLength returns the length of the concatenated layout so far.
func (pl *PackedLayout) TotalLength() int { return pl.nextStart }

func (pl *PackedLayout) ensureBuilt() {
	if pl.built {
		return
	}
	pl.tree = &interval.IntTree{}
	for _, s := range pl.spans {
		pl.tree.Insert(s, false)
	}
	pl.tree.AdjustRanges()
	pl.built = true
}

// Locate returns the transcript id and local (0-based, within-transcript)
// offset containing globalPos, or ok=false if globalPos lies outside
// every span (e.g. past the end of the layout).
func (pl *PackedLayout) Locate(globalPos int) (transcriptID uint32, localPos int, ok bool) {
	pl.ensureBuilt()
	hits := pl.tree.Get(span{start: globalPos, end: globalPos + 1})
	if len(hits) == 0 {
		return 0, 0, false
	}
	s := hits[0].(span)
	return s.transcript, globalPos - s.start, true
}

// SpanOf returns the [start,end) of transcriptID's entry, in insertion
// order (the concatenated layout assumes ids were added in ascending
// order, matching the packed reference's own dense id convention).
func (pl *PackedLayout) SpanOf(transcriptID uint32) (start, end int, ok bool) {
	for _, s := range pl.spans {
		if s.transcript == transcriptID {
			return s.start, s.end, true
		}
	}
	return 0, 0, false
}
