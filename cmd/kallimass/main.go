//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Command kallimass wires lib/session's pass loop to a FASTA reference
// and one or more SAM/BAM read files. The CLI surface itself is out of
// scope (spec.md §1) -- this binary exists only to exercise the session
// driver end-to-end, so its flag set is deliberately small compared to
// a production quantifier's.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cluster"
	"github.com/homologus/kallimass/lib/em"
	"github.com/homologus/kallimass/lib/fld"
	"github.com/homologus/kallimass/lib/libformat"
	"github.com/homologus/kallimass/lib/logspace"
	"github.com/homologus/kallimass/lib/pipeline"
	"github.com/homologus/kallimass/lib/quantio"
	"github.com/homologus/kallimass/lib/rtlog"
	"github.com/homologus/kallimass/lib/seedcollect"
	"github.com/homologus/kallimass/lib/session"
	"github.com/homologus/kallimass/lib/transcript"
)

var version = "DEV"

func main() {
	var pathFasta, pathSAMsRaw, pathBAMsRaw, expectedFormatName, scratchDir, pathReport string
	var paired, printVersion bool
	var numWorker, miniBatch, bamWorkers, minSeedLen, maxReadOccs, outputSoftCap int
	var required uint64
	var coverageThresh float64
	var caching, useFragLenDist, useReadCompat bool

	flag.StringVar(&pathFasta, "path_fasta", "", "Path to reference transcript FASTA")
	flag.StringVar(&pathSAMsRaw, "path_sam", "", "Path to SAM file(s) (comma separated)")
	flag.StringVar(&pathBAMsRaw, "path_bam", "", "Path to BAM file(s) (comma separated)")
	flag.BoolVar(&paired, "paired", false, "Pair-end sequencing")
	flag.StringVar(&expectedFormatName, "expected_format", "IU", "Expected library format code (SU, SS, SA, IU, ISF, ISR, OU, OSF, OSR, MU, MSF, MSR)")
	flag.IntVar(&numWorker, "num_worker", 1, "Number of worker(s)")
	flag.IntVar(&miniBatch, "mini_batch", 1000, "Fragments per parser job")
	flag.IntVar(&bamWorkers, "bam_worker", 1, "BAM decompression worker(s)")
	flag.IntVar(&minSeedLen, "min_seed_len", 19, "Minimum seed length")
	flag.IntVar(&maxReadOccs, "max_read_occs", 200, "Maximum transcript occurrences before a read is discarded")
	flag.Float64Var(&coverageThresh, "coverage_thresh", 0.7, "Minimum coverage score to keep a transcript hit")
	flag.IntVar(&outputSoftCap, "output_soft_cap", 64, "Output-queue soft capacity in mini-batches before spilling to disk")
	flag.Uint64Var(&required, "num_required_fragments", 50_000_000, "Fragments to observe (across passes) before stopping")
	flag.BoolVar(&caching, "caching", true, "Cache alignments to disk for replay passes")
	flag.BoolVar(&useFragLenDist, "use_frag_len_dist", true, "Weight alignments by the fragment-length distribution")
	flag.BoolVar(&useReadCompat, "use_read_compat", true, "Weight alignments by library-format compatibility")
	flag.StringVar(&scratchDir, "scratch_dir", "", "Directory for temporary cache/spill files (default: a fresh temp dir)")
	flag.StringVar(&pathReport, "path_report", "libFormatCounts.txt", "Write libFormatCounts.txt to path (stdout with -)")
	flag.BoolVar(&printVersion, "version", false, "Print version and quit")
	flag.Parse()

	if printVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	rt := rtlog.New(os.Stderr)

	if pathFasta == "" {
		rt.Fatalf("no reference FASTA given (-path_fasta)")
	}
	if _, err := os.Stat(pathFasta); os.IsNotExist(err) {
		rt.Fatalf("%s not found", pathFasta)
	}

	var libraries []*session.Library
	expectedFormat, err := libformat.FormatByName(expectedFormatName)
	if err != nil {
		rt.Fatalf("%v", err)
	}
	if pathSAMsRaw != "" {
		for _, p := range strings.Split(pathSAMsRaw, ",") {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				rt.Fatalf("%s not found", p)
			}
			libraries = append(libraries, &session.Library{Path: p, Binary: false, Paired: paired, Format: expectedFormat})
		}
	}
	if pathBAMsRaw != "" {
		for _, p := range strings.Split(pathBAMsRaw, ",") {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				rt.Fatalf("%s not found", p)
			}
			libraries = append(libraries, &session.Library{Path: p, Binary: true, Paired: paired, Format: expectedFormat})
		}
	}
	if len(libraries) == 0 {
		rt.Fatalf("no SAM/BAM input (-path_sam or -path_bam)")
	}

	if scratchDir == "" {
		dir, err := os.MkdirTemp("", "kallimass-")
		if err != nil {
			rt.Fatalf("%v", err)
		}
		defer os.RemoveAll(dir)
		scratchDir = dir
	}

	names, seqs, err := readFasta(pathFasta)
	if err != nil {
		rt.Fatalf("%v", err)
	}
	rt.Printf("loaded %d transcript(s) from %s", len(names), pathFasta)

	var entries []*transcript.Transcript
	for i, seq := range seqs {
		entries = append(entries, transcript.New(uint32(i), names[i], len(seq), packBases(seq)))
	}
	table, err := transcript.NewTable(entries)
	if err != nil {
		rt.Fatalf("%v", err)
	}
	for i := 0; i < table.Len(); i++ {
		table.Get(uint32(i)).SetMass(logspace.LogOneHalf)
	}
	acc := em.NewAccumulator(table, cluster.New(table.Len()), fld.New())

	idx := newNaiveIndex(names, seqs, maxReadOccs, minSeedLen)

	sp := seedcollect.DefaultParams()
	sp.MinSeedLen = minSeedLen

	cfg := session.Config{
		NumWorkers:    numWorker,
		MiniBatch:     miniBatch,
		BamWorkers:    bamWorkers,
		Required:      required,
		Caching:       caching,
		OutputSoftCap: outputSoftCap,
		ScratchDir:    scratchDir,
		Pipeline: pipeline.Config{
			BatchSize:      miniBatch,
			CoverageThresh: coverageThresh,
			MaxReadOccs:    maxReadOccs,
			SeedParams:     sp,
			EMParams: em.Params{
				UseFragLenDist: useFragLenDist,
				UseReadCompat:  useReadCompat,
			},
			UpdateCounts: true,
		},
	}

	sess := session.New(idx, alignment.NewPool(numWorker*miniBatch*10), acc, rt, cfg)
	if err := sess.Run(context.Background(), libraries); err != nil {
		rt.Fatalf("%v", err)
	}

	counts := acc.LibTypeCounts()
	if err := quantio.WriteLibFormatCounts(pathReport, expectedFormat, counts); err != nil {
		rt.Fatalf("%v", err)
	}

	rt.Printf("done: %d fragments assigned", sess.TotalAssigned())
}

// readFasta loads every record's uppercase sequence, grounded on the
// biogo fasta reader idiom other_examples/mudesheng-ga__mapDBG.go uses:
// a template linear.Seq handed to fasta.NewReader, read in a loop until
// io.EOF.
func readFasta(path string) (names []string, seqs [][]byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := fasta.NewReader(f, linear.NewSeq("", nil, alphabet.DNA))
	for {
		s, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, err
		}
		l := s.(*linear.Seq)
		seq := make([]byte, len(l.Seq))
		for i, v := range l.Seq {
			seq[i] = byte(v)
		}
		names = append(names, l.ID)
		seqs = append(seqs, seq)
	}
	return names, seqs, nil
}
