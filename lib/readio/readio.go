//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package readio implements the read-parser contract the pipeline
// consumes (spec.md §6) and one concrete reader over SAM/BAM files that
// treats the file purely as a read container, not an alignment source.
package readio

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// FragmentRecord is one fragment's raw bases, pulled from the read
// source ahead of seed collection (C4). Seq2 is nil for single-end
// fragments.
type FragmentRecord struct {
	Name string
	Seq1 []byte
	Seq2 []byte
}

// ReadParser yields jobs of up to mini_batch fragments; io.EOF signals
// exhaustion (spec.md §6 "Read parser").
type ReadParser interface {
	NextJob(ctx context.Context) ([]FragmentRecord, error)
	Close() error
}

// BAMReadParser implements ReadParser over a SAM or BAM file, mirroring
// the teacher's OpenSAM helper (cmd/geneabacus/pc.go) but extracting
// mate bases instead of alignment geometry: CIGAR, Pos, and MapQ are
// never consulted, and base qualities are not carried. Pairing assumes
// mates are adjacent in file order and reads only the Read1 flag of the
// first record of a pair to decide which mate is mate one.
type BAMReadParser struct {
	f         *os.File
	rr        sam.RecordReader
	paired    bool
	miniBatch int
}

// OpenBAMReadParser opens path (a binary BAM if binary is true, plain
// SAM text otherwise) as a ReadParser yielding jobs of up to miniBatch
// fragments. bamWorkers is passed through to bam.NewReader's internal
// decompression worker count.
func OpenBAMReadParser(path string, binary bool, paired bool, miniBatch int, bamWorkers int) (*BAMReadParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var rr sam.RecordReader
	if binary {
		rr, err = bam.NewReader(f, bamWorkers)
	} else {
		rr, err = sam.NewReader(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return &BAMReadParser{f: f, rr: rr, paired: paired, miniBatch: miniBatch}, nil
}

// Close closes the underlying file.
func (p *BAMReadParser) Close() error { return p.f.Close() }

// NextJob pulls up to miniBatch fragments, pairing adjacent records
// when paired is set. Returns a short final job followed by io.EOF on
// the next call, or io.EOF directly if the file is already exhausted.
func (p *BAMReadParser) NextJob(ctx context.Context) ([]FragmentRecord, error) {
	job := make([]FragmentRecord, 0, p.miniBatch)
	for len(job) < p.miniBatch {
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		default:
		}

		rec, err := p.rr.Read()
		if err == io.EOF {
			if len(job) > 0 {
				return job, nil
			}
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}
		if rec.Flags&sam.Secondary != 0 || rec.Flags&sam.Supplementary != 0 {
			continue
		}

		fr := FragmentRecord{Name: rec.Name, Seq1: rec.Seq.Expand()}
		if p.paired {
			isRead1First := rec.Flags&sam.Read1 != 0
			mate, err := p.nextMate()
			if err != nil {
				return nil, err
			}
			if mate.Name != rec.Name {
				return nil, fmt.Errorf("readio: mismatched mate names %q and %q", rec.Name, mate.Name)
			}
			mateSeq := mate.Seq.Expand()
			if isRead1First {
				fr.Seq2 = mateSeq
			} else {
				fr.Seq2 = fr.Seq1
				fr.Seq1 = mateSeq
			}
		}
		job = append(job, fr)
	}
	return job, nil
}

// nextMate reads forward past any secondary or supplementary alignments
// to find the next primary record, matching PConFeature's mate-read loop.
func (p *BAMReadParser) nextMate() (*sam.Record, error) {
	for {
		rec, err := p.rr.Read()
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		} else if err != nil {
			return nil, err
		}
		if rec.Flags&(sam.Secondary|sam.Supplementary) == 0 {
			return rec, nil
		}
	}
}
