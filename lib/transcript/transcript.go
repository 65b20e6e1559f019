//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package transcript holds the reference-transcript table: sequences are
// read-only after load, mass/counts mutate concurrently via atomics.
package transcript

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/homologus/kallimass/lib/logspace"
)

// Strand denotes the sense (1) or reverse-complement (-1) read of a base.
type Strand int8

const (
	Forward Strand = 1
	Reverse Strand = -1
)

// base2bit maps the 2-bit code back to its ASCII nucleotide.
var base2bit = [4]byte{'A', 'C', 'G', 'T'}

// complement2bit maps a 2-bit code to the 2-bit code of its complement.
// Encoding is A=0 C=1 G=2 T=3; complement pairs are A<->T, C<->G.
var complement2bit = [4]byte{3, 2, 1, 0}

// Transcript is immutable after New except for Mass/TotalCount/UniqueCount,
// which are mutated exclusively through atomic operations.
type Transcript struct {
	id     uint32
	name   string
	length int
	// packed holds 2-bit-encoded bases, 4 per byte, first base in the
	// lowest-order two bits.
	packed []byte

	// mass is stored as the raw bits of a float64 in log space; LOG0
	// ("no observed mass") is the zero value's natural bit pattern only
	// after explicit initialization, never implicitly.
	massBits    uint64
	totalCount  int64
	uniqueCount int64
}

// New builds a Transcript from a name, length and pre-packed 2-bit sequence.
// len(packed) must be ceil(length/4).
func New(id uint32, name string, length int, packed []byte) *Transcript {
	t := &Transcript{id: id, name: name, length: length, packed: packed}
	atomic.StoreUint64(&t.massBits, math.Float64bits(logspace.LOG0))
	return t
}

func (t *Transcript) ID() uint32   { return t.id }
func (t *Transcript) Name() string { return t.name }
func (t *Transcript) Length() int  { return t.length }

// Mass returns the current log-space mass.
func (t *Transcript) Mass() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.massBits))
}

// AddMass log-adds delta into the transcript's mass via a lock-free CAS loop.
func (t *Transcript) AddMass(logDelta float64) {
	for {
		old := atomic.LoadUint64(&t.massBits)
		oldMass := math.Float64frombits(old)
		newMass := logspace.Add(oldMass, logDelta)
		newBits := math.Float64bits(newMass)
		if atomic.CompareAndSwapUint64(&t.massBits, old, newBits) {
			return
		}
	}
}

// SetMass overwrites the mass (used when resetting/seeding between passes).
func (t *Transcript) SetMass(logMass float64) {
	atomic.StoreUint64(&t.massBits, math.Float64bits(logMass))
}

func (t *Transcript) TotalCount() int64  { return atomic.LoadInt64(&t.totalCount) }
func (t *Transcript) UniqueCount() int64 { return atomic.LoadInt64(&t.uniqueCount) }

func (t *Transcript) AddTotalCount()  { atomic.AddInt64(&t.totalCount, 1) }
func (t *Transcript) AddUniqueCount() { atomic.AddInt64(&t.uniqueCount, 1) }

// CharBaseAt decodes the base at 0-based position pos, strand-aware: for
// Reverse strand, pos indexes from the end and the base is complemented.
// Out-of-range pos is a fatal error per spec (never silently wraps).
func (t *Transcript) CharBaseAt(pos int, strand Strand) byte {
	if pos < 0 || pos >= t.length {
		panic(fmt.Sprintf("transcript %s: position %d out of range [0,%d)", t.name, pos, t.length))
	}
	var code byte
	if strand == Forward {
		code = t.rawCode(pos)
	} else {
		code = complement2bit[t.rawCode(t.length-1-pos)]
	}
	return base2bit[code]
}

func (t *Transcript) rawCode(pos int) byte {
	b := t.packed[pos/4]
	shift := uint(pos%4) * 2
	return (b >> shift) & 0x3
}

// Table is the dense, 0..N-1 indexed set of all reference transcripts,
// built once from the external index and never resized afterward.
type Table struct {
	entries []*Transcript
}

// NewTable builds a Table from entries already sorted/dense by id.
func NewTable(entries []*Transcript) (*Table, error) {
	for i, e := range entries {
		if e.ID() != uint32(i) {
			return nil, fmt.Errorf("transcript table: entry %d has id %d, want dense id", i, e.ID())
		}
	}
	return &Table{entries: entries}, nil
}

func (tb *Table) Len() int { return len(tb.entries) }

// Get returns the transcript with the given id. Invalid ids panic: a
// caller requesting an id outside [0,Len) is a programming error in the
// core, not a recoverable condition (spec.md §7 treats it as a bug
// indicator to be logged by the caller before it ever reaches here).
func (tb *Table) Get(id uint32) *Transcript {
	return tb.entries[id]
}

// Valid reports whether id addresses a real transcript.
func (tb *Table) Valid(id uint32) bool {
	return id < uint32(len(tb.entries))
}

// ResetPass clears total/unique counts and mass ahead of a fresh EM pass
// that intends to reuse the table (kept counts would double-count on a
// hard restart; the soft-reset between passes never calls this).
func (tb *Table) ResetPass() {
	for _, t := range tb.entries {
		t.SetMass(logspace.LOG0)
		atomic.StoreInt64(&t.totalCount, 0)
		atomic.StoreInt64(&t.uniqueCount, 0)
	}
}
