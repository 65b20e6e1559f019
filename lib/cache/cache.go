//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package cache

import (
	"bufio"
	"os"

	"github.com/pierrec/lz4"

	"github.com/homologus/kallimass/lib/alignment"
)

// Writer appends AlignmentGroup records to a per-library on-disk cache
// file, lz4-compressed, grounded on feature_ext.go's WriteProfiles
// "binary" branch (version byte + binary.Write of fixed records wrapped
// in an lz4.Writer). NumWritten tracks the record count externally, per
// spec.md §6's CacheFile.num_written, so a replay pass knows when to
// stop without a trailing sentinel.
type Writer struct {
	f          *os.File
	lz         *lz4.Writer
	numWritten uint64
}

// NewWriter creates (or truncates) the cache file at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, lz: lz4.NewWriter(f)}, nil
}

// WriteGroup appends one AlignmentGroup record.
func (w *Writer) WriteGroup(g *alignment.Group) error {
	if err := WriteGroup(w.lz, g); err != nil {
		return err
	}
	w.numWritten++
	return nil
}

// NumWritten reports how many records have been written so far.
func (w *Writer) NumWritten() uint64 { return w.numWritten }

// Close flushes the lz4 stream and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.lz.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader replays a cache file written by Writer, one AlignmentGroup
// record at a time, in write order.
type Reader struct {
	f  *os.File
	br *bufio.Reader
}

// NewReader opens the cache file at path for replay.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{f: f, br: bufio.NewReader(lz4.NewReader(f))}, nil
}

// ReadGroup decodes the next record into g. Returns io.EOF once every
// record has been consumed.
func (r *Reader) ReadGroup(g *alignment.Group) error {
	return ReadGroup(r.br, g)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Remove deletes the cache file at path. Cache files are session-scoped
// temporaries (spec.md §9 "Caches as temporaries") — the session driver
// calls this on exit regardless of how many passes replayed it.
func Remove(path string) error {
	return os.Remove(path)
}
