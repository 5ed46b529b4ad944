package ibis

import (
	"testing"

	"spice2ibis/pkg/unit"
)

func TestCombinePropagatesNA(t *testing.T) {
	a := TMM(1.0, unit.NA(), 3.0)
	b := TMM(0.5, 2.0, unit.NA())

	got := Sub(a, b)

	if got.Typ != 0.5 {
		t.Errorf("Typ = %g, want 0.5", got.Typ)
	}
	if !unit.IsNA(got.Min) {
		t.Errorf("Min = %g, want NA (left operand unset)", got.Min)
	}
	if !unit.IsNA(got.Max) {
		t.Errorf("Max = %g, want NA (right operand unset)", got.Max)
	}
}

func TestCombineBothNA(t *testing.T) {
	got := Sub(NewTMM(), NewTMM())
	if got.AnySet() {
		t.Errorf("Sub(NA, NA) = %+v, want all NA", got)
	}
}

func TestCoalesceFromOnlyFillsUnset(t *testing.T) {
	dst := TMM(1.0, unit.NA(), unit.NA())
	dst.CoalesceFrom(TMM(9.0, 2.0, 3.0))

	if dst.Typ != 1.0 {
		t.Errorf("Typ overwritten: got %g", dst.Typ)
	}
	if dst.Min != 2.0 || dst.Max != 3.0 {
		t.Errorf("unset corners not filled: %+v", dst)
	}

	// A second pass must be a no-op.
	before := dst
	dst.CoalesceFrom(TMM(7.0, 7.0, 7.0))
	if dst != before {
		t.Errorf("coalesce not idempotent: %+v vs %+v", dst, before)
	}
}

func TestVITableSizeInvariant(t *testing.T) {
	tbl := NewVITable(5)
	if tbl.Size != len(tbl.Entries) || tbl.Size != 5 {
		t.Fatalf("size %d, entries %d", tbl.Size, len(tbl.Entries))
	}
	tbl.Append(VIEntry{V: 1})
	if tbl.Size != len(tbl.Entries) {
		t.Fatalf("size %d after append, entries %d", tbl.Size, len(tbl.Entries))
	}
	tbl.Truncate(2)
	if tbl.Size != 2 || len(tbl.Entries) != 2 {
		t.Fatalf("size %d after truncate, entries %d", tbl.Size, len(tbl.Entries))
	}
}

func TestVITableAppendCap(t *testing.T) {
	tbl := NewVITable(0)
	for i := 0; i < 150; i++ {
		tbl.Append(VIEntry{V: float64(i)})
	}
	if tbl.Size != 100 {
		t.Errorf("table grew past cap: size %d", tbl.Size)
	}
}

func TestModelTypeTokens(t *testing.T) {
	tests := map[string]ModelType{
		"io":            IO,
		"I/O":           IO,
		"INPUT":         Input,
		"3-state":       ThreeState,
		"Open_drain":    OpenDrain,
		"output_ecl":    OutputECL,
		"Series_switch": SeriesSwitch,
		"Terminator":    Terminator,
	}
	for in, want := range tests {
		got, err := ParseModelType(in)
		if err != nil {
			t.Errorf("ParseModelType(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseModelType(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseModelType("bogus"); err == nil {
		t.Error("ParseModelType(bogus): expected error")
	}
	if IO.String() != "I/O" || ThreeState.String() != "3-state" || OpenDrain.String() != "Open_drain" {
		t.Error("model type tokens do not match the IBIS spellings")
	}
}

func TestReservedModelNames(t *testing.T) {
	for _, n := range []string{"POWER", "gnd", "Nc", "NOMODEL", "dummy"} {
		if !IsReservedModelName(n) {
			t.Errorf("%q should be reserved", n)
		}
	}
	if IsReservedModelName("test_model") {
		t.Error("test_model should not be reserved")
	}
}
