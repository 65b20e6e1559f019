//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/libformat"
)

func sampleGroupFor(pool *alignment.Pool, tid uint32) *alignment.Group {
	g := pool.Checkout()
	g.Add(alignment.Alignment{TranscriptID: tid, Format: libformat.FormatIU, Score: 1, FragLength: 100})
	return g
}

func TestOutputQueueSpillsWhenChannelIsFull(t *testing.T) {
	pool := alignment.NewPool(8)
	scratch := filepath.Join(t.TempDir(), "spill.zst")
	q := NewOutputQueue(0, scratch, pool) // unbuffered: every Enqueue below spills.

	batch1 := []*alignment.Group{sampleGroupFor(pool, 0), sampleGroupFor(pool, 1)}
	if err := q.Enqueue(batch1); err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	batch2 := []*alignment.Group{sampleGroupFor(pool, 2)}
	if err := q.Enqueue(batch2); err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}
	if q.spilled != 3 {
		t.Fatalf("spilled = %d, want 3", q.spilled)
	}

	var total int
	var gotTIDs []uint32
	done := make(chan struct{})
	go func() {
		for batch := range q.C() {
			for _, g := range batch {
				total++
				gotTIDs = append(gotTIDs, g.Alignments[0].TranscriptID)
				pool.Return(g)
			}
		}
		close(done)
	}()

	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done

	if total != 3 {
		t.Fatalf("total groups drained = %d, want 3", total)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("scratch file %s should have been removed by Close", scratch)
	}
}
