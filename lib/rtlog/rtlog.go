//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package rtlog is the session driver's elapsed-time progress logger,
// grounded on the "%.1fmin - ..." printf idiom used throughout the
// teacher's cmd/geneabacus rather than a structured logging library --
// nothing in the retrieval pack pulls in one.
package rtlog

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Logger prints elapsed-minutes-prefixed lines to an io.Writer.
type Logger struct {
	w     io.Writer
	start time.Time
}

// New starts a Logger whose elapsed time is measured from now.
func New(w io.Writer) *Logger {
	return &Logger{w: w, start: time.Now()}
}

// Elapsed reports minutes since the Logger was created.
func (l *Logger) Elapsed() float64 {
	return time.Since(l.start).Minutes()
}

// Printf writes one "%.1fmin - <message>\n" line.
func (l *Logger) Printf(format string, args ...interface{}) {
	fmt.Fprintf(l.w, "%.1fmin - %s\n", l.Elapsed(), fmt.Sprintf(format, args...))
}

// Fatalf writes one line like Printf, then exits the process with status
// 1, matching log.Fatal's semantics for the driver's fail-fast paths
// (spec.md §7 "fail-fast, process exit").
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.Printf(format, args...)
	os.Exit(1)
}
