//
// Copyright (C) 2015-2022 Charles E. Vejnar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//

package libformat

import (
	"testing"

	"github.com/homologus/kallimass/lib/logspace"
)

func TestFormatFromIDRoundTrips(t *testing.T) {
	for _, f := range []Format{FormatSU, FormatISF, FormatOSR, FormatMU} {
		got, err := FormatFromID(f.ID)
		if err != nil {
			t.Fatalf("FormatFromID(%d): %v", f.ID, err)
		}
		if got != f {
			t.Errorf("FormatFromID(%d) = %+v, want %+v", f.ID, got, f)
		}
	}
}

func TestFormatFromIDUnknown(t *testing.T) {
	if _, err := FormatFromID(255); err == nil {
		t.Errorf("expected an error for an out-of-range id")
	}
}

func TestHitTypePairedToward(t *testing.T) {
	f := HitTypePaired(10, true, 100, false)
	if f.Orientation != Toward {
		t.Errorf("Orientation = %v, want Toward", f.Orientation)
	}
	if f.Strandedness != SA {
		t.Errorf("Strandedness = %v, want SA", f.Strandedness)
	}
}

func TestHitTypePairedAway(t *testing.T) {
	// Mate one is forward but downstream of mate two's reverse hit: the
	// two reads point away from each other.
	f := HitTypePaired(100, true, 10, false)
	if f.Orientation != Away {
		t.Errorf("Orientation = %v, want Away", f.Orientation)
	}
}

func TestHitTypePairedSame(t *testing.T) {
	f := HitTypePaired(10, true, 100, true)
	if f.Orientation != Same {
		t.Errorf("Orientation = %v, want Same", f.Orientation)
	}
}

// Library-format compatibility (property 8, S8 in spec.md §8): for
// expected=IU (inward, unstranded), toward observations get LOG_ONEHALF,
// and a mismatched type/orientation always gets LOG_0.
func TestCompatUnstrandedExpectation(t *testing.T) {
	observedToward := HitTypePaired(10, true, 100, false)
	if got := Compat(observedToward, FormatIU); got != logspace.LogOneHalf {
		t.Errorf("Compat(toward, IU) = %v, want LogOneHalf", got)
	}

	observedAway := HitTypePaired(100, true, 10, false)
	if got := Compat(observedAway, FormatIU); got != logspace.LOG0 {
		t.Errorf("Compat(away, IU) = %v, want LOG_0 (orientation mismatch)", got)
	}
}

func TestCompatStrandedExpectation(t *testing.T) {
	observed := HitTypePaired(10, true, 100, false) // strandedness SA
	if got := Compat(observed, FormatISF); got != logspace.LOG1 {
		t.Errorf("Compat(SA-observed, ISF) = %v, want LOG_1 (matches)", got)
	}
	if got := Compat(observed, FormatISR); got != logspace.LOG0 {
		t.Errorf("Compat(SA-observed, ISR) = %v, want LOG_0 (strand mismatch)", got)
	}
}

func TestCompatSingleEnd(t *testing.T) {
	if got := Compat(HitType(true), FormatSU); got != logspace.LogOneHalf {
		t.Errorf("Compat(forward single, SU) = %v, want LogOneHalf", got)
	}
	if got := Compat(HitType(true), FormatSS); got != logspace.LOG1 {
		t.Errorf("Compat(forward single, SS) = %v, want LOG_1", got)
	}
	if got := Compat(HitType(false), FormatSS); got != logspace.LOG0 {
		t.Errorf("Compat(reverse single, SS) = %v, want LOG_0", got)
	}
}
