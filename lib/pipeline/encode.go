//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package pipeline

// base2bitCode mirrors lib/transcript's packing convention so seed-index
// implementations can decode read bases the same way they decode
// reference sequence: A=0 C=1 G=2 T=3, any other byte (N, soft-masked
// lowercase handled above, ambiguity codes) packs as 0.
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

// pack2Bit encodes seq into the 2-bit-packed, 4-bases-per-byte layout
// (first base in the lowest-order two bits) the external seed index expects (seedindex.Index's
// SeedIteratorFor contract, spec.md §4.4).
func pack2Bit(seq []byte) (packed []byte, baseLen int) {
	packed = make([]byte, (len(seq)+3)/4)
	for i, b := range seq {
		packed[i/4] |= base2bitCode(b) << (uint(i%4) * 2)
	}
	return packed, len(seq)
}
