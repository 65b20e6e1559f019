package transcript

import (
	"math"
	"sync"
	"testing"

	"github.com/homologus/kallimass/lib/logspace"
)

func TestCharBaseAtForwardAndReverse(t *testing.T) {
	tr := NewFromASCII(0, "T0", "ACGTACGTAC")
	for i, want := range "ACGTACGTAC" {
		if got := tr.CharBaseAt(i, Forward); got != byte(want) {
			t.Errorf("forward base %d = %c, want %c", i, got, want)
		}
	}
	// Reverse complement of "ACGTACGTAC" is "GTACGTACGT".
	want := "GTACGTACGT"
	for i, w := range want {
		if got := tr.CharBaseAt(i, Reverse); got != byte(w) {
			t.Errorf("reverse base %d = %c, want %c", i, got, w)
		}
	}
}

func TestCharBaseAtOutOfRangePanics(t *testing.T) {
	tr := NewFromASCII(0, "T0", "ACGT")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range position")
		}
	}()
	tr.CharBaseAt(4, Forward)
}

func TestAddMassConcurrent(t *testing.T) {
	tr := NewFromASCII(0, "T0", "ACGT")
	var wg sync.WaitGroup
	n := 200
	delta := math.Log(1.0)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AddMass(delta)
		}()
	}
	wg.Wait()
	got := math.Exp(tr.Mass())
	want := float64(n)
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("mass after %d concurrent adds = %v, want %v", n, got, want)
	}
}

func TestNewTableRequiresDenseIDs(t *testing.T) {
	entries := []*Transcript{NewFromASCII(1, "T0", "ACGT")}
	if _, err := NewTable(entries); err == nil {
		t.Fatal("expected error for non-dense id")
	}
}

func TestTableGetAndValid(t *testing.T) {
	entries := []*Transcript{
		NewFromASCII(0, "T0", "ACGT"),
		NewFromASCII(1, "T1", "GGCC"),
	}
	tb, err := NewTable(entries)
	if err != nil {
		t.Fatal(err)
	}
	if tb.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tb.Len())
	}
	if !tb.Valid(1) || tb.Valid(2) {
		t.Errorf("Valid(1)=%v Valid(2)=%v", tb.Valid(1), tb.Valid(2))
	}
	if tb.Get(1).Name() != "T1" {
		t.Errorf("Get(1).Name() = %s, want T1", tb.Get(1).Name())
	}
}

func TestInitialMassIsLog0(t *testing.T) {
	tr := NewFromASCII(0, "T0", "ACGT")
	if tr.Mass() != logspace.LOG0 {
		t.Errorf("initial mass = %v, want LOG0", tr.Mass())
	}
}

func TestResetPass(t *testing.T) {
	entries := []*Transcript{NewFromASCII(0, "T0", "ACGT")}
	tb, _ := NewTable(entries)
	tb.Get(0).AddMass(logspace.LOG1)
	tb.Get(0).AddTotalCount()
	tb.Get(0).AddUniqueCount()
	tb.ResetPass()
	if tb.Get(0).Mass() != logspace.LOG0 {
		t.Error("mass not reset")
	}
	if tb.Get(0).TotalCount() != 0 || tb.Get(0).UniqueCount() != 0 {
		t.Error("counts not reset")
	}
}
