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
	"path/filepath"
	"testing"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cache"
	"github.com/homologus/kallimass/lib/libformat"
)

func TestReplayFoldsCachedGroupsIntoAccumulator(t *testing.T) {
	const readLen = 100
	path := filepath.Join(t.TempDir(), "lib0.bin")

	w, err := cache.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 6; i++ {
		g := &alignment.Group{}
		g.Add(alignment.Alignment{TranscriptID: 0, Format: libformat.FormatIU, Score: 1, FragLength: readLen})
		if err := w.WriteGroup(g); err != nil {
			t.Fatalf("WriteGroup: %v", err)
		}
	}
	numWritten := w.NumWritten()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := cache.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	pool := alignment.NewPool(4)
	acc := newSingleTranscriptAccumulator(readLen)
	cfg := Config{BatchSize: 2}

	if err := Replay(context.Background(), r, numWritten, pool, acc, 2, cfg); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if got := acc.NumObservedFragments(); got != numWritten {
		t.Errorf("NumObservedFragments() = %d, want %d", got, numWritten)
	}
	if got := acc.NumAssignedFragments(); got != numWritten {
		t.Errorf("NumAssignedFragments() = %d, want %d (unique hit on the only transcript)", got, numWritten)
	}
}
