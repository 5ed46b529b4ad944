package analysis

import (
	"math"
	"testing"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/spice"
)

// rawTable builds an ascending sweep table v[0]..v[n-1] with typ current
// equal to the index.
func rawTable(start, step float64, n int) *ibis.VITable {
	t := ibis.NewVITable(0)
	for i := 0; i < n; i++ {
		e := ibis.VIEntry{V: start + float64(i)*step, I: ibis.NewTMM()}
		e.I.Typ = float64(i)
		t.Append(e)
	}
	return t
}

func sweepFor(start, span, step float64, vccTyp float64) spice.Sweep {
	sw := spice.Sweep{Start: start, Span: span, Step: step, Vcc: ibis.NewTMM(), Vgnd: ibis.NewTMM()}
	sw.Vcc.Typ = vccTyp
	return sw
}

func TestSortPullupReversedAndRelative(t *testing.T) {
	raw := rawTable(-1.0, 0.25, 60) // -1.0 .. 13.75
	sw := sweepFor(-1.0, 14.75, 0.25, 3.3)

	out := SortVIData(spice.Pullup, raw, sw, math.NaN())
	if out == nil {
		t.Fatal("nil table")
	}
	if out.Size != 60 {
		t.Fatalf("size = %d, want 60 (sweep implies 60, equal to raw)", out.Size)
	}
	// First output point is the raw table's last, VCC-relative.
	if math.Abs(out.Entries[0].V-(3.3-13.75)) > 1e-9 {
		t.Errorf("entry 0 V = %g, want %g", out.Entries[0].V, 3.3-13.75)
	}
	if out.Entries[0].I.Typ != 59 {
		t.Errorf("entry 0 I = %g, want raw tail current", out.Entries[0].I.Typ)
	}
	for i := 1; i < out.Size; i++ {
		if out.Entries[i].V <= out.Entries[i-1].V {
			t.Fatalf("voltage not ascending at %d", i)
		}
	}
}

func TestSortPullupSizeFromSweep(t *testing.T) {
	raw := rawTable(0, 0.25, 80)
	sw := sweepFor(0, 5.0, 0.25, 3.3) // implies 21 points
	out := SortVIData(spice.Pullup, raw, sw, math.NaN())
	if out.Size != 21 {
		t.Errorf("size = %d, want 21", out.Size)
	}
}

func TestSortPulldownTerminalPoint(t *testing.T) {
	raw := rawTable(0, 0.25, 80) // ends at 19.75
	sw := sweepFor(0, 5.0, 0.25, 3.3)
	out := SortVIData(spice.Pulldown, raw, sw, math.NaN())
	if out.Size != 21 {
		t.Fatalf("size = %d", out.Size)
	}
	if out.Entries[0].V != 0 {
		t.Errorf("pulldown must keep forward order, entry 0 V = %g", out.Entries[0].V)
	}
	last := out.Entries[out.Size-1]
	if math.Abs(last.V-19.75) > 1e-9 || last.I.Typ != 79 {
		t.Errorf("terminal point = %+v, want the raw table's endpoint", last)
	}
}

func TestSortPowerClampFilter(t *testing.T) {
	raw := rawTable(0, 0.5, 20) // 0 .. 9.5
	sw := sweepFor(0, 9.5, 0.5, 3.3)
	out := SortVIData(spice.PowerClamp, raw, sw, math.NaN())
	if out == nil || out.Size == 0 {
		t.Fatal("empty power clamp")
	}
	for _, e := range out.Entries {
		// v' = vcc - v with v >= vcc, so relative voltages are <= 0.
		if e.V > 1e-9 {
			t.Fatalf("point with raw V below VCC slipped through: %+v", e)
		}
	}
	// Walked from the end backward: first kept point is the raw maximum.
	if math.Abs(out.Entries[0].V-(3.3-9.5)) > 1e-9 {
		t.Errorf("entry 0 = %+v", out.Entries[0])
	}
}

func TestSortGndClampVccCutoff(t *testing.T) {
	raw := rawTable(-3.3, 0.5, 20) // -3.3 .. 6.2
	sw := sweepFor(-3.3, 9.5, 0.5, 3.3)
	out := SortVIData(spice.GndClamp, raw, sw, math.NaN())
	for _, e := range out.Entries {
		// The cutoff is the typ supply, not ground.
		if e.V > 3.3 {
			t.Fatalf("point above VCC kept: %+v", e)
		}
	}
	if out.Entries[0].V != -3.3 {
		t.Errorf("gnd clamp reordered: entry 0 = %+v", out.Entries[0])
	}
	// Points between ground and VCC stay in.
	found := false
	for _, e := range out.Entries {
		if e.V > 0 {
			found = true
		}
	}
	if !found {
		t.Error("above-ground points below VCC were dropped")
	}
}

func TestSortDerating(t *testing.T) {
	raw := rawTable(0, 0.1, 10)
	for i := range raw.Entries {
		raw.Entries[i].I = ibis.TMM(1, 2, 4)
	}
	sw := sweepFor(0, 0.9, 0.1, 3.3)
	out := SortVIData(spice.Pulldown, raw, sw, 10)
	e := out.Entries[0]
	if e.I.Typ != 1 {
		t.Errorf("typ derated: %g", e.I.Typ)
	}
	if math.Abs(e.I.Min-1.8) > 1e-12 || math.Abs(e.I.Max-4.4) > 1e-12 {
		t.Errorf("derated min/max = %g/%g, want 1.8/4.4", e.I.Min, e.I.Max)
	}
}

func TestSortSeriesData(t *testing.T) {
	raw := rawTable(0, 0.1, 30)
	out := SortVISeriesData(raw, 3.3)
	if out.Size != 30 {
		t.Fatalf("size = %d", out.Size)
	}
	if out.Entries[0].V != 3.3 || out.Entries[0].I.Typ != 0 {
		t.Errorf("series entry 0 = %+v, want VCC-relative without reorder", out.Entries[0])
	}
}

func TestSortEmptyAndNil(t *testing.T) {
	if SortVIData(spice.Pullup, nil, sweepFor(0, 1, 0.1, 3.3), 0) != nil {
		t.Error("nil raw should sort to nil")
	}
	if SortVIData(spice.Pullup, ibis.NewVITable(0), sweepFor(0, 1, 0.1, 3.3), 0) != nil {
		t.Error("empty raw should sort to nil")
	}
}

func TestSubtractDisabledNaN(t *testing.T) {
	ena := ibis.NewVITable(0)
	dis := ibis.NewVITable(0)
	ena.Append(ibis.VIEntry{V: 0, I: ibis.TMM(5, 6, 7)})
	e := ibis.VIEntry{V: 0, I: ibis.NewTMM()}
	e.I.Typ = 1 // min/max never simulated
	dis.Append(e)

	subtractDisabled(ena, dis)
	if ena.Entries[0].I.Typ != 4 {
		t.Errorf("typ = %g, want 4", ena.Entries[0].I.Typ)
	}
	if !math.IsNaN(ena.Entries[0].I.Min) || !math.IsNaN(ena.Entries[0].I.Max) {
		t.Error("subtracting an unset corner must stay unset, not pass the enabled value through")
	}
}

func TestSizeForCaps(t *testing.T) {
	if n := sizeFor(sweepFor(0, 50, 0.1, 3.3), 1000); n != consts.MaxTableSize {
		t.Errorf("n = %d, want table cap", n)
	}
	if n := sizeFor(sweepFor(0, 1, 0.1, 3.3), 5); n != 5 {
		t.Errorf("n = %d, want raw length", n)
	}
}
