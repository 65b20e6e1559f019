//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

// Package quantio writes libFormatCounts.txt, the format compatibility
// breakdown a quantification session persists on exit (spec.md §6). The
// report covers the counts it is given as one total; it has no
// per-library split. quant.sf itself is explicitly out of scope ("writer is
// external"); this package only ever writes the format report.
package quantio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/homologus/kallimass/lib/libformat"
	"github.com/homologus/kallimass/lib/logspace"
)

// libFormatReport is the JSON shape written to libFormatCounts.txt: a
// top-level compatible/incompatible split, plus the raw per-format
// tally for diagnostics.
type libFormatReport struct {
	Compatible   int64            `json:"compatible"`
	Incompatible int64            `json:"incompatible"`
	ByFormat     map[string]int64 `json:"by_format"`
}

// WriteLibFormatCounts classifies every observed format id against
// expected (via libformat.Compat) and writes libFormatCounts.txt as
// indented JSON, mirroring cmd/geneabacus/report.go's WriteReport: same
// json.MarshalIndent idiom, same "path == \"-\" means stdout" convention.
func WriteLibFormatCounts(path string, expected libformat.Format, counts map[uint8]int64) error {
	report := libFormatReport{ByFormat: make(map[string]int64, len(counts))}
	for id, n := range counts {
		f, err := libformat.FormatFromID(id)
		if err != nil {
			return err
		}
		report.ByFormat[f.Name()] = n
		if libformat.Compat(f, expected) == logspace.LOG0 {
			report.Incompatible += n
		} else {
			report.Compatible += n
		}
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		fmt.Println(string(encoded))
		return nil
	}
	return os.WriteFile(path, encoded, 0644)
}
