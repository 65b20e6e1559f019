//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package seedindex states the contracts the seed collector (C4) consumes
// from the external BWT/suffix-array index and reference unpacker — both
// out of scope for this module (spec.md §1). Nothing in this package
// builds an index; it only describes the shape one must have.
package seedindex

// MEM describes one maximal exact match found by the external seed
// iterator: it starts at QueryStart in the read, spans Length bases, and
// occurs NumOcc times in the reference.
type MEM struct {
	QueryStart int
	Length     int
	NumOcc     int
}

// SeedIterator is the per-read handle an Index hands out; it knows how to
// find (S)MEMs against the bases it was built for.
type SeedIterator interface {
	// SMEMAt returns the supermaximal exact match interval starting at
	// readPos, or ok=false if the position yields no seed (e.g. an N).
	SMEMAt(readPos int) (mem MEM, ok bool)
	// Reseed finds MEMs contained within mem by re-seeding from a
	// midpoint read position, used for SMEMs that are long but occur
	// rarely enough (<= split_width) to be worth decomposing further.
	Reseed(mem MEM, midpointReadPos int) []MEM
	// ExtraSensitive performs a greedy, lower-specificity seed walk over
	// the whole read, capped at maxIntv occurrences per seed. Only
	// invoked when the opt-in extra_seed_pass is enabled.
	ExtraSensitive(maxIntv int) []MEM
	// Occurrence resolves the i-th (0-based, i < mem.NumOcc) occurrence
	// of mem to an absolute offset in the concatenated reference.
	Occurrence(mem MEM, i int) int64
}

// Index is the external BWT/suffix-array-backed index over reference
// transcripts, built once ahead of any quantification pass.
type Index interface {
	NumTranscripts() int
	// TranscriptAt returns the name, length and packed-sequence offset
	// of transcript id (id < NumTranscripts()).
	TranscriptAt(id uint32) (name string, length int, seqOffset int64)
	// SeedIteratorFor returns a SeedIterator over bases, a 2-bit-packed
	// read (or mate).
	SeedIteratorFor(bases []byte, baseLen int) SeedIterator
	// Resolve maps an absolute concatenated-reference offset (as
	// returned by SeedIterator.Occurrence) to a transcript-local hit:
	// the transcript id, the 0-based local offset within that
	// transcript, and whether the occurrence lies in the
	// reverse-complement half of the packed reference. ok is false for
	// an occurrence that falls exactly on the fwd/rev boundary and
	// should be silently discarded (spec.md §4.4).
	Resolve(globalOffset int64) (transcriptID uint32, localPos uint32, isReverse bool, ok bool)
}
