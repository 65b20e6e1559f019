//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package fld holds the online fragment-length distribution: a bounded,
// smoothed histogram updated with a triangular kernel and looked up as a
// lazily-normalized log-PMF.
package fld

import (
	"math"
	"sync"

	"github.com/homologus/kallimass/lib/logspace"
)

const (
	defaultMaxLen = 800
	defaultMean   = 200.0
	defaultStd    = 80.0
	defaultHalfN  = 4
	defaultP      = 0.5
	defaultAlpha  = 1e-2
	// floorLogPMF is returned for out-of-range lengths: never LOG0, so a
	// single wildly-wrong fragment length cannot zero out a group's
	// probability outright (spec.md §4.3 invariant).
	floorLogPMF = -30.0
)

// Distribution is the online smoothed fragment-length histogram.
type Distribution struct {
	mu         sync.Mutex
	maxLen     int
	halfN      int
	p          float64
	alpha      float64
	counts     []float64 // linear-space smoothed counts, index == length
	normalized bool
	logTotal   float64
}

// New builds a Distribution seeded with a Gaussian-ish prior centered at
// mean with spread std, matching the teacher-seeded defaults from
// spec.md §4.3 (max_len=800, mean=200, std=80, N=4, p=0.5).
func New() *Distribution {
	return NewWithParams(defaultMaxLen, defaultMean, defaultStd, defaultHalfN, defaultP, defaultAlpha)
}

// NewWithParams allows overriding every construction parameter.
func NewWithParams(maxLen int, mean, std float64, halfN int, p, alpha float64) *Distribution {
	d := &Distribution{
		maxLen: maxLen,
		halfN:  halfN,
		p:      p,
		alpha:  alpha,
		counts: make([]float64, maxLen),
	}
	for l := 0; l < maxLen; l++ {
		z := (float64(l) - mean) / std
		d.counts[l] = alpha * math.Exp(-0.5*z*z)
	}
	return d
}

// kernelWeight returns the triangular-kernel weight at integer offset
// dist from the observation, decaying by p per step out to halfN.
func kernelWeight(dist int, halfN int, p float64) float64 {
	if dist < 0 {
		dist = -dist
	}
	if dist > halfN {
		return 0
	}
	return math.Pow(p, float64(dist))
}

// AddVal accumulates logWeight (converted to linear space) into the
// neighborhood [length-N, length+N] of the histogram, weighted by the
// triangular kernel. Called at most on ~exp(log_prob) of alignments
// pre-burn-in, never after (spec.md §5).
func (d *Distribution) AddVal(length int, logWeight float64) {
	if length < 0 || length >= d.maxLen {
		return
	}
	weight := math.Exp(logWeight)
	d.mu.Lock()
	defer d.mu.Unlock()
	for off := -d.halfN; off <= d.halfN; off++ {
		l := length + off
		if l < 0 || l >= d.maxLen {
			continue
		}
		d.counts[l] += weight * kernelWeight(off, d.halfN, d.p)
	}
	d.normalized = false
}

// normalize computes the log of the total mass under the histogram,
// lazily, so repeated Pmf lookups between AddVal calls are cheap.
func (d *Distribution) normalize() {
	if d.normalized {
		return
	}
	var total float64
	for _, c := range d.counts {
		total += c
	}
	if total <= 0 {
		d.logTotal = logspace.LOG0
	} else {
		d.logTotal = math.Log(total)
	}
	d.normalized = true
}

// Pmf returns the current log-PMF at length. Out-of-range lengths return
// a floor value, never LOG0 (spec.md §4.3 invariant).
func (d *Distribution) Pmf(length int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if length < 0 || length >= d.maxLen {
		return floorLogPMF
	}
	d.normalize()
	c := d.counts[length]
	if c <= 0 {
		return floorLogPMF
	}
	return math.Log(c) - d.logTotal
}

// MaxLen returns the upper bound (exclusive) of representable lengths.
func (d *Distribution) MaxLen() int { return d.maxLen }
