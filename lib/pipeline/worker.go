//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package pipeline runs the parallel streaming worker loop (C8): N
// worker goroutines pull fragment jobs from a read parser, run seed
// collection/chain scoring/hit assembly (C4-C6) per fragment, and feed
// filled AlignmentGroups through the mini-batch EM step (C7) at a batch
// boundary. Orchestration follows cmd/geneabacus/pc.go's PConFeature:
// one parser goroutine, a nested worker errgroup, and (when caching is
// enabled) a dedicated cache-writer goroutine draining an output queue.
package pipeline

import (
	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/chainscore"
	"github.com/homologus/kallimass/lib/em"
	"github.com/homologus/kallimass/lib/hitassembler"
	"github.com/homologus/kallimass/lib/readio"
	"github.com/homologus/kallimass/lib/seedcollect"
	"github.com/homologus/kallimass/lib/seedindex"
)

// Config bundles every tunable the worker loop needs to run C4 through
// C7 over one library's fragments.
type Config struct {
	Paired         bool
	BatchSize      int // mini-batch size handed to em.Accumulator.ProcessBatch
	CoverageThresh float64
	MaxReadOccs    int
	SeedParams     seedcollect.Params
	EMParams       em.Params
	UpdateCounts   bool
	Caching        bool
}

// scoreTranscriptHits runs C5 for every transcript C4 found seeds
// against, turning a HitList map into a chain-scored map.
func scoreTranscriptHits(hits map[uint32]*seedcollect.HitList, readLen int) map[uint32]hitassembler.PerTranscript {
	out := make(map[uint32]hitassembler.PerTranscript, len(hits))
	for tid, hl := range hits {
		out[tid] = chainscore.ComputeBestChain(hl, readLen)
	}
	return out
}

// fillGroup runs C4 (seed collection), C5 (chain scoring) and C6 (hit
// assembly) for one fragment, leaving the result in g.
func fillGroup(idx seedindex.Index, cfg Config, frag readio.FragmentRecord, g *alignment.Group) {
	if cfg.Paired {
		leftBases, leftLen := pack2Bit(frag.Seq1)
		rightBases, rightLen := pack2Bit(frag.Seq2)
		leftHits := scoreTranscriptHits(seedcollect.Collect(idx, leftBases, leftLen, cfg.SeedParams), leftLen)
		rightHits := scoreTranscriptHits(seedcollect.Collect(idx, rightBases, rightLen, cfg.SeedParams), rightLen)
		hitassembler.AssemblePaired(leftHits, rightHits, rightLen, cfg.CoverageThresh, cfg.MaxReadOccs, g)
	} else {
		bases, baseLen := pack2Bit(frag.Seq1)
		hits := scoreTranscriptHits(seedcollect.Collect(idx, bases, baseLen, cfg.SeedParams), baseLen)
		hitassembler.AssembleSingle(hits, baseLen, cfg.CoverageThresh, cfg.MaxReadOccs, g)
	}
}
