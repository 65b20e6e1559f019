//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package transcript

var asciiToCode = map[byte]byte{'A': 0, 'C': 1, 'G': 2, 'T': 3}

// Pack2Bit encodes an ASCII {A,C,G,T} sequence into the 4-per-byte packed
// form Transcript/seedcollect expect. Any other byte (N, lowercase, etc.)
// is packed as 'A' — bisulfite- or ambiguity-aware packing belongs to the
// external reference unpacker, out of scope here (spec.md §1).
func Pack2Bit(seq []byte) []byte {
	packed := make([]byte, (len(seq)+3)/4)
	for i, c := range seq {
		code, ok := asciiToCode[c]
		if !ok {
			code = 0
		}
		packed[i/4] |= code << (uint(i%4) * 2)
	}
	return packed
}

// NewFromASCII is a test/tooling convenience building a Transcript
// straight from an ASCII sequence string.
func NewFromASCII(id uint32, name string, seq string) *Transcript {
	return New(id, name, len(seq), Pack2Bit([]byte(seq)))
}
