//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cluster"
	"github.com/homologus/kallimass/lib/em"
	"github.com/homologus/kallimass/lib/fld"
	"github.com/homologus/kallimass/lib/logspace"
	"github.com/homologus/kallimass/lib/readio"
	"github.com/homologus/kallimass/lib/seedcollect"
	"github.com/homologus/kallimass/lib/seedindex"
	"github.com/homologus/kallimass/lib/transcript"
)

// singleHitIndex is a one-transcript fixture that reports every read as
// a single full-length, uniquely-occurring seed on transcript 0 -- just
// enough for fillGroup (C4-C6) to emit one alignment per fragment
// without needing a real suffix array.
type singleHitIndex struct {
	transcriptLen int
}

func (x *singleHitIndex) NumTranscripts() int { return 1 }

func (x *singleHitIndex) TranscriptAt(id uint32) (string, int, int64) {
	return "T0", x.transcriptLen, 0
}

func (x *singleHitIndex) SeedIteratorFor(bases []byte, baseLen int) seedindex.SeedIterator {
	return &singleHitIterator{baseLen: baseLen}
}

func (x *singleHitIndex) Resolve(globalOffset int64) (uint32, uint32, bool, bool) {
	return 0, 0, false, true
}

type singleHitIterator struct{ baseLen int }

func (it *singleHitIterator) SMEMAt(readPos int) (seedindex.MEM, bool) {
	if readPos != 0 {
		return seedindex.MEM{}, false
	}
	return seedindex.MEM{QueryStart: 0, Length: it.baseLen, NumOcc: 1}, true
}

func (it *singleHitIterator) Reseed(mem seedindex.MEM, midpointReadPos int) []seedindex.MEM {
	return nil
}
func (it *singleHitIterator) ExtraSensitive(maxIntv int) []seedindex.MEM { return nil }
func (it *singleHitIterator) Occurrence(mem seedindex.MEM, i int) int64  { return 0 }

// fakeParser replays a fixed slice of jobs, then io.EOF.
type fakeParser struct {
	mu   sync.Mutex
	jobs [][]readio.FragmentRecord
	next int
}

func (p *fakeParser) NextJob(ctx context.Context) ([]readio.FragmentRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.jobs) {
		return nil, io.EOF
	}
	job := p.jobs[p.next]
	p.next++
	return job, nil
}

func (p *fakeParser) Close() error { return nil }

func testConfig() Config {
	sp := seedcollect.DefaultParams()
	sp.MinSeedLen = 4
	return Config{
		Paired:         false,
		BatchSize:      2,
		CoverageThresh: 0.5,
		MaxReadOccs:    10,
		SeedParams:     sp,
	}
}

func newSingleTranscriptAccumulator(length int) *em.Accumulator {
	packed := make([]byte, (length+3)/4)
	tr := transcript.New(0, "T0", length, packed)
	tb, err := transcript.NewTable([]*transcript.Transcript{tr})
	if err != nil {
		panic(err)
	}
	acc := em.NewAccumulator(tb, cluster.New(1), fld.New())
	acc.Transcripts.Get(0).SetMass(logspace.LOG1)
	return acc
}

func TestRunAssignsEveryFragmentToTheOnlyTranscript(t *testing.T) {
	const readLen = 8
	frag := readio.FragmentRecord{Name: "r", Seq1: []byte("ACGTACGT")}
	parser := &fakeParser{jobs: [][]readio.FragmentRecord{
		{frag, frag},
		{frag, frag},
	}}

	idx := &singleHitIndex{transcriptLen: readLen}
	pool := alignment.NewPool(8)
	acc := newSingleTranscriptAccumulator(readLen)

	n, err := Run(context.Background(), idx, parser, pool, acc, 2, testConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	if got := acc.NumObservedFragments(); got != 4 {
		t.Errorf("NumObservedFragments() = %d, want 4", got)
	}
	if got := acc.NumAssignedFragments(); got != 4 {
		t.Errorf("NumAssignedFragments() = %d, want 4 (unique hit on the only transcript)", got)
	}
	if pool.Cap() < 8 {
		t.Errorf("pool capacity shrank unexpectedly: %d", pool.Cap())
	}
}

func TestRunWithOutputQueueRoutesBatchesToCacheConsumer(t *testing.T) {
	const readLen = 8
	frag := readio.FragmentRecord{Name: "r", Seq1: []byte("ACGTACGT")}
	parser := &fakeParser{jobs: [][]readio.FragmentRecord{
		{frag, frag},
		{frag, frag},
	}}

	idx := &singleHitIndex{transcriptLen: readLen}
	pool := alignment.NewPool(8)
	acc := newSingleTranscriptAccumulator(readLen)

	dir := t.TempDir()
	q := NewOutputQueue(1, dir+"/spill.zst", pool)

	var consumed int
	done := make(chan struct{})
	go func() {
		for batch := range q.C() {
			consumed += len(batch)
			for _, g := range batch {
				pool.Return(g)
			}
		}
		close(done)
	}()

	n, err := Run(context.Background(), idx, parser, pool, acc, 2, testConfig(), q)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done

	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	if consumed != 4 {
		t.Errorf("consumed = %d, want 4", consumed)
	}
}
