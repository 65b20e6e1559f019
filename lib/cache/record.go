//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package cache holds the on-disk alignment-group cache file format: a
// per-library binary stream of serialized AlignmentGroup records, so a
// later EM pass can replay fragments instead of re-mapping reads.
package cache

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/libformat"
)

// WriteGroup serializes g onto w per spec.md §6: a varint alignment
// count, then per alignment (transcript_id u32, format_id u8, score f64,
// frag_length u32), little-endian throughout. log_prob is not persisted
// — a replay pass recomputes it fresh in the E-step.
func WriteGroup(w io.Writer, g *alignment.Group) error {
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], uint64(g.Len()))
	if _, err := w.Write(varintBuf[:n]); err != nil {
		return err
	}
	for _, al := range g.Alignments {
		if err := binary.Write(w, binary.LittleEndian, al.TranscriptID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, al.Format.ID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, al.Score); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, al.FragLength); err != nil {
			return err
		}
	}
	return nil
}

// ReadGroup deserializes one record from br into g, which is reset
// first. br must support ReadByte so the leading varint count can be
// decoded.
func ReadGroup(br *bufio.Reader, g *alignment.Group) error {
	g.Reset()
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		var tid uint32
		var formatID uint8
		var score float64
		var fragLength uint32
		if err := binary.Read(br, binary.LittleEndian, &tid); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &formatID); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &score); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &fragLength); err != nil {
			return err
		}
		format, err := libformat.FormatFromID(formatID)
		if err != nil {
			return err
		}
		g.Add(alignment.Alignment{
			TranscriptID: tid,
			Format:       format,
			Score:        score,
			FragLength:   fragLength,
		})
	}
	return nil
}
