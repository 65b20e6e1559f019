//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package libformat is the closed library-type enumeration every
// alignment carries: fragment type crossed with mate orientation crossed
// with strandedness, plus the table lookup that replaces the original's
// per-format dynamic dispatch with a single stable byte id.
package libformat

import (
	"fmt"

	"github.com/homologus/kallimass/lib/logspace"
)

// Type is whether a fragment came from one read or a mate pair.
type Type uint8

const (
	Single Type = iota
	Paired
)

// Orientation describes how two mates point relative to each other.
// Single-end fragments always carry None.
type Orientation uint8

const (
	None Orientation = iota
	Same
	Away
	Toward
)

// Strandedness records which strand(s) the library is expected to (or
// was observed to) originate from. U means unstranded: either is fine.
type Strandedness uint8

const (
	U Strandedness = iota
	S
	A
	SA
	AS
)

// Format is the closed (Type, Orientation, Strandedness) triple, given a
// stable small-integer id so it can cross the alignment-cache wire as one
// byte (spec.md §6).
type Format struct {
	ID           uint8
	Type         Type
	Orientation  Orientation
	Strandedness Strandedness
}

var (
	table []Format
	names []string
)

func register(name string, t Type, o Orientation, s Strandedness) Format {
	f := Format{ID: uint8(len(table)), Type: t, Orientation: o, Strandedness: s}
	table = append(table, f)
	names = append(names, name)
	return f
}

// The full closed enumeration, in stable id order. Single-end formats
// never carry an orientation; paired formats enumerate every
// orientation/strandedness combination actually produced by HitType.
// Names follow the short library-type codes used throughout the
// quantification literature (SU/SS/SA for single-end, IU/ISF/... for
// paired inward, OU/... for outward, MU/... for same-strand mates).
var (
	FormatSU  = register("SU", Single, None, U)
	FormatSS  = register("SS", Single, None, S)
	FormatSA  = register("SA", Single, None, A)
	FormatIU  = register("IU", Paired, Toward, U)
	FormatISF = register("ISF", Paired, Toward, SA)
	FormatISR = register("ISR", Paired, Toward, AS)
	FormatOU  = register("OU", Paired, Away, U)
	FormatOSF = register("OSF", Paired, Away, SA)
	FormatOSR = register("OSR", Paired, Away, AS)
	FormatMU  = register("MU", Paired, Same, U)
	FormatMSF = register("MSF", Paired, Same, SA)
	FormatMSR = register("MSR", Paired, Same, AS)
)

// Name returns the format's short library-type code, e.g. "IU" or "OSF".
func (f Format) Name() string { return names[f.ID] }

// FormatFromID is the inverse of Format.ID: a stable byte-to-struct
// lookup, so cache files can persist just the id (spec.md §6).
func FormatFromID(id uint8) (Format, error) {
	if int(id) >= len(table) {
		return Format{}, fmt.Errorf("libformat: unknown format id %d", id)
	}
	return table[id], nil
}

// FormatByName looks up a Format by its short code (e.g. "IU", "OSF"),
// case-insensitive-free -- codes are already the canonical casing used
// throughout the library-type literature. Used to parse the expected
// library type off a command line.
func FormatByName(name string) (Format, error) {
	for i, n := range names {
		if n == name {
			return table[i], nil
		}
	}
	return Format{}, fmt.Errorf("libformat: unknown format name %q", name)
}

// HitType maps observed single-end geometry to the canonical enum: the
// read's strand alone determines strandedness (orientation is None).
func HitType(isForward bool) Format {
	if isForward {
		return FormatSS
	}
	return FormatSA
}

// HitTypePaired maps observed paired-end mate geometry (each mate's
// best-chain position and strand) to the canonical enum. Orientation
// follows the same convention downstream paired-end tools use: mates on
// opposite strands with the forward mate upstream are "toward" (inward,
// the common case); opposite strands with the forward mate downstream
// are "away"; same-strand mates are "same". Strandedness is read off
// mate one's strand.
func HitTypePaired(pos1 int32, isForward1 bool, pos2 int32, isForward2 bool) Format {
	var orientation Orientation
	switch {
	case isForward1 == isForward2:
		orientation = Same
	case isForward1 && pos1 <= pos2:
		orientation = Toward
	case !isForward1 && pos1 >= pos2:
		orientation = Toward
	default:
		orientation = Away
	}

	var strand Strandedness
	if isForward1 {
		strand = SA
	} else {
		strand = AS
	}

	for _, f := range table {
		if f.Type == Paired && f.Orientation == orientation && f.Strandedness == strand {
			return f
		}
	}
	// Unreachable given the enumeration above covers every
	// (orientation, strandedness) pair HitTypePaired can produce.
	return FormatIU
}

// Compat is the port of logAlignFormatProb: LOG_0 on a type/orientation
// mismatch; LOG_ONEHALF when the expected library is unstranded;
// LOG_1/LOG_0 on a strandedness match/mismatch otherwise.
func Compat(observed, expected Format) float64 {
	if observed.Type != expected.Type || observed.Orientation != expected.Orientation {
		return logspace.LOG0
	}
	if expected.Strandedness == U {
		return logspace.LogOneHalf
	}
	if expected.Strandedness == observed.Strandedness {
		return logspace.LOG1
	}
	return logspace.LOG0
}
