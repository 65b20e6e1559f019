//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package session drives the outer quantification pass loop (C9): the
// first pass (or every pass, if caching is disabled) runs the hot
// pipeline over every library; later passes soft-reset the accumulator
// and replay each library's alignment cache instead, until enough
// fragments have been observed across every pass or the input turns out
// not to support a second look.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/homologus/kallimass/lib/alignment"
	"github.com/homologus/kallimass/lib/cache"
	"github.com/homologus/kallimass/lib/em"
	"github.com/homologus/kallimass/lib/libformat"
	"github.com/homologus/kallimass/lib/pipeline"
	"github.com/homologus/kallimass/lib/readio"
	"github.com/homologus/kallimass/lib/rtlog"
	"github.com/homologus/kallimass/lib/seedindex"
)

// Library describes one read source the session quantifies against,
// plus the bookkeeping the pass loop needs to replay it.
type Library struct {
	Path       string
	Binary     bool // BAM if true, plain SAM text otherwise
	Paired     bool
	Format     libformat.Format
	CachePath  string // per-library alnCache_<i>.bin path, only used when caching
	numWritten uint64 // set by the pass that wrote its cache file
}

// Config bundles every session-wide tunable that stays fixed across
// passes and libraries.
type Config struct {
	NumWorkers    int
	MiniBatch     int
	BamWorkers    int
	Required      uint64 // outer loop runs until this many fragments are observed
	Caching       bool
	OutputSoftCap int
	ScratchDir    string // holds alnCache_<i>.bin and output-queue spill files
	Pipeline      pipeline.Config
}

// Session owns the state one quantification run threads through every
// pass: the seed index, the shared structure pool, and the EM
// accumulator every pass folds mini-batches into.
type Session struct {
	idx  seedindex.Index
	pool *alignment.Pool
	acc  *em.Accumulator
	log  *rtlog.Logger
	cfg  Config

	// totalObserved/totalAssigned are the outer loop's running totals,
	// folded in by SoftReset at each pass boundary; they never reset,
	// unlike the accumulator's own per-pass counters (spec.md §4.9).
	totalObserved uint64
	totalAssigned uint64
	pass          int
}

// New wires a Session to the tables and worker-pool it will drive
// through every pass. acc must already be seeded (transcript masses,
// FLD prior) by the caller.
func New(idx seedindex.Index, pool *alignment.Pool, acc *em.Accumulator, log *rtlog.Logger, cfg Config) *Session {
	return &Session{idx: idx, pool: pool, acc: acc, log: log, cfg: cfg}
}

// TotalAssigned reports the fragment count assigned across every
// completed and in-flight pass.
func (s *Session) TotalAssigned() uint64 {
	return s.totalAssigned + s.acc.NumAssignedFragments()
}

// totalObservedNow is the outer loop's termination counter: fragments
// folded into totalObserved by earlier soft-resets, plus whatever the
// current pass has observed so far.
func (s *Session) totalObservedNow() uint64 {
	return s.totalObserved + s.acc.NumObservedFragments()
}

// Run drives the outer pass loop over libraries until totalObservedNow
// reaches cfg.Required, or a non-initial pass turns out to be
// impossible because caching is off and an input can't be reopened
// (spec.md §7 "Non-replayable input on second pass"). On return --
// success or the non-replayable break alike -- every per-library cache
// file has been removed (spec.md §9 "Caches as temporaries").
func (s *Session) Run(ctx context.Context, libraries []*Library) error {
	defer s.cleanupCaches(libraries)

	initial := true
passLoop:
	for s.totalObservedNow() < s.cfg.Required {
		switch {
		case initial:
			if err := s.runHotPass(ctx, libraries, s.cfg.Caching, s.cfg.Pipeline.UpdateCounts); err != nil {
				return err
			}
		case !s.cfg.Caching:
			if !allReplayable(libraries) {
				s.warnNonReplayable()
				break passLoop
			}
			s.foldPass()
			// update_counts only ever applies to the first pass over a
			// fresh transcript table (spec.md §4.7); re-reading the raw
			// input on a later pass must not double the total/unique
			// per-transcript counts.
			if err := s.runHotPass(ctx, libraries, false, false); err != nil {
				return err
			}
		default:
			s.foldPass()
			if err := s.runReplayPass(ctx, libraries); err != nil {
				return err
			}
		}
		initial = false
	}
	return nil
}

// foldPass performs the soft-reset spec.md §4.9 describes: accumulate
// total_assigned += assigned, zero num_observed and assigned on the
// accumulator, increment the pass counter, preserve masses and batch
// number (both untouched by SoftReset).
func (s *Session) foldPass() {
	observed, assigned := s.acc.SoftReset()
	s.totalObserved += observed
	s.totalAssigned += assigned
	s.pass++
}

func (s *Session) warnNonReplayable() {
	s.log.Printf("input not replayable and caching disabled after %d/%d observed fragments; accepting current estimate",
		s.totalObservedNow(), s.cfg.Required)
}

// runHotPass runs C8 over every library in turn: seed collection, chain
// scoring and hit assembly per fragment (C4-C6), folded into the EM
// accumulator (C7) at batch boundaries. writeCache, when set, routes
// each library's completed batches through a fresh alnCache_<i>.bin
// file via an elastic output queue instead of returning groups straight
// to the pool.
func (s *Session) runHotPass(ctx context.Context, libraries []*Library, writeCache, updateCounts bool) error {
	for i, lib := range libraries {
		if err := s.runHotLibrary(ctx, i, lib, writeCache, updateCounts); err != nil {
			return fmt.Errorf("session: library %q: %w", lib.Path, err)
		}
	}
	return nil
}

func (s *Session) runHotLibrary(ctx context.Context, idx int, lib *Library, writeCache, updateCounts bool) error {
	parser, err := readio.OpenBAMReadParser(lib.Path, lib.Binary, lib.Paired, s.cfg.MiniBatch, s.cfg.BamWorkers)
	if err != nil {
		return err
	}
	defer parser.Close()

	cfg := s.cfg.Pipeline
	cfg.Paired = lib.Paired
	cfg.EMParams.ExpectedFormat = lib.Format
	cfg.Caching = writeCache
	cfg.UpdateCounts = updateCounts

	if !writeCache {
		_, err := pipeline.Run(ctx, s.idx, parser, s.pool, s.acc, s.cfg.NumWorkers, cfg, nil)
		return err
	}

	if lib.CachePath == "" {
		lib.CachePath = filepath.Join(s.cfg.ScratchDir, fmt.Sprintf("alnCache_%d.bin", idx))
	}
	writer, err := cache.NewWriter(lib.CachePath)
	if err != nil {
		return err
	}

	out := pipeline.NewOutputQueue(s.cfg.OutputSoftCap, filepath.Join(s.cfg.ScratchDir, fmt.Sprintf("spill_%d.bin", idx)), s.pool)

	drainDone := make(chan error, 1)
	go func() {
		for batch := range out.C() {
			for _, g := range batch {
				if err := writer.WriteGroup(g); err != nil {
					drainDone <- err
					drainRest(out.C(), s.pool)
					return
				}
				s.pool.Return(g)
			}
		}
		drainDone <- nil
	}()

	_, runErr := pipeline.Run(ctx, s.idx, parser, s.pool, s.acc, s.cfg.NumWorkers, cfg, out)
	closeErr := out.Close()
	drainErr := <-drainDone
	writerErr := writer.Close()

	lib.numWritten = writer.NumWritten()

	for _, err := range []error{runErr, closeErr, drainErr, writerErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// drainRest empties ch without writing, so the OutputQueue's Close
// (which pushes onto ch synchronously) never blocks after the cache
// writer goroutine has already given up on an I/O error.
func drainRest(ch <-chan []*alignment.Group, pool *alignment.Pool) {
	for batch := range ch {
		for _, g := range batch {
			pool.Return(g)
		}
	}
}

// runReplayPass runs C7 alone over every library's cache file, in
// place of C4-C6, exactly matching the hot path's mini-batch folding.
func (s *Session) runReplayPass(ctx context.Context, libraries []*Library) error {
	for _, lib := range libraries {
		if err := s.runReplayLibrary(ctx, lib); err != nil {
			return fmt.Errorf("session: replaying %q: %w", lib.CachePath, err)
		}
	}
	return nil
}

func (s *Session) runReplayLibrary(ctx context.Context, lib *Library) error {
	reader, err := cache.NewReader(lib.CachePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	cfg := s.cfg.Pipeline
	cfg.Paired = lib.Paired
	cfg.EMParams.ExpectedFormat = lib.Format
	cfg.UpdateCounts = false // replay is always a non-initial pass

	return pipeline.Replay(ctx, reader, lib.numWritten, s.pool, s.acc, s.cfg.NumWorkers, cfg)
}

// cleanupCaches removes every per-library cache file the session wrote,
// regardless of how the pass loop ended (spec.md §9 "Caches as
// temporaries": their existence is an implementation detail and must
// not leak as output).
func (s *Session) cleanupCaches(libraries []*Library) {
	for _, lib := range libraries {
		if lib.CachePath == "" {
			continue
		}
		if err := cache.Remove(lib.CachePath); err != nil {
			s.log.Printf("could not remove cache file %q: %v", lib.CachePath, err)
		}
	}
}

// allReplayable reports whether every library's input is a regular
// file, i.e. one a second hot pass could reopen and re-read from the
// start. Streams and pipes fail Stat's regular-file check.
func allReplayable(libraries []*Library) bool {
	for _, lib := range libraries {
		fi, err := os.Stat(lib.Path)
		if err != nil || !fi.Mode().IsRegular() {
			return false
		}
	}
	return true
}
