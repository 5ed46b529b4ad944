package parser

import (
	"os"
	"path/filepath"
	"testing"

	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `[IBIS Ver] 3.2
[Component] test_comp
[Manufacturer] test_mfg
[Pin]
1 SIG1 NC test_model
[Model] test_model
[Model Type] io
`

func TestParseMinimalConfig(t *testing.T) {
	top, err := Parse(writeConfig(t, "min.s2i", minimalConfig))
	if err != nil {
		t.Fatal(err)
	}

	if len(top.Components) != 1 {
		t.Fatalf("got %d components, want 1", len(top.Components))
	}
	c := top.Components[0]
	if c.Name != "test_comp" || c.Manufacturer != "test_mfg" {
		t.Errorf("component = %q / %q", c.Name, c.Manufacturer)
	}
	if len(c.Pins) != 1 {
		t.Fatalf("got %d pins, want 1", len(c.Pins))
	}
	if c.Pins[0].Name != "1" || c.Pins[0].ModelName != "test_model" {
		t.Errorf("pin = %+v", c.Pins[0])
	}

	if len(top.Models) != 1 {
		t.Fatalf("got %d models, want 1", len(top.Models))
	}
	m := top.Models[0]
	if m.Name != "test_model" || m.Type != ibis.IO {
		t.Errorf("model = %q type %v, want test_model I/O", m.Name, m.Type)
	}
	if top.Global.IbisVer != 3.2 {
		t.Errorf("IbisVer = %g", top.Global.IbisVer)
	}
}

func TestParseRPkgTriple(t *testing.T) {
	top, err := Parse(writeConfig(t, "pkg.s2i", "[R_pkg] 2.0m 1.0m 4.0m\n"))
	if err != nil {
		t.Fatal(err)
	}
	r := top.Global.RPkg
	if r.Typ != 0.002 || r.Min != 0.001 || r.Max != 0.004 {
		t.Errorf("RPkg = %+v, want (0.002, 0.001, 0.004)", r)
	}
}

func TestShortPinRowSkipped(t *testing.T) {
	cfg := "[Component] c\n[Pin]\n1 SIG1 NC\n"
	top, err := Parse(writeConfig(t, "short.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	if len(top.Components) != 1 {
		t.Fatalf("got %d components", len(top.Components))
	}
	if n := len(top.Components[0].Pins); n != 0 {
		t.Errorf("got %d pins, want 0 (3-token row must be skipped)", n)
	}
}

func TestEmptyFile(t *testing.T) {
	top, err := Parse(writeConfig(t, "empty.s2i", ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(top.Components) != 0 || len(top.Models) != 0 {
		t.Errorf("empty file produced %d components, %d models", len(top.Components), len(top.Models))
	}
	if top.Global.VoltageRange.AnySet() {
		t.Error("globals should be all unset")
	}
}

func TestMissingFileIsFatal(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "nope.s2i")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestContinuationAndComments(t *testing.T) {
	cfg := "[Voltage Range] 3.3 | typical\n+ 3.0 3.6 | corner spread\n"
	top, err := Parse(writeConfig(t, "cont.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	vr := top.Global.VoltageRange
	if vr.Typ != 3.3 || vr.Min != 3.0 || vr.Max != 3.6 {
		t.Errorf("VoltageRange = %+v", vr)
	}
}

func TestPinRowVariants(t *testing.T) {
	cfg := `[Component] c
[Spice File] dut.sp
[Pin]
1 N1 CLK m1 1.0m 2.0n 3.0p
2 N2 DAT m1 1.0m 2.0n 3.0p 3.3 0.0 3.3 0.0 5 6
3 N3 OE m1
-> 1 2
`
	top, err := Parse(writeConfig(t, "pins.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	pins := top.Components[0].Pins
	if len(pins) != 3 {
		t.Fatalf("got %d pins", len(pins))
	}
	if pins[0].RPin != 0.001 || pins[0].LPin != 2e-9 || pins[0].CPin != 3e-12 {
		t.Errorf("pin 1 parasitics = %g %g %g", pins[0].RPin, pins[0].LPin, pins[0].CPin)
	}
	if pins[1].PullupRef != 3.3 || pins[1].GndClampRef != 0 {
		t.Errorf("pin 2 refs = %+v", pins[1])
	}
	if pins[1].InputPin != "5" || pins[1].EnablePin != "6" {
		t.Errorf("pin 2 cross refs = %q %q", pins[1].InputPin, pins[1].EnablePin)
	}
	if pins[2].InputPin != "1" || pins[2].EnablePin != "2" {
		t.Errorf("-> row not applied: %+v", pins[2])
	}
	if pins[2].RPin != ibis.UnusedRLC {
		t.Errorf("pin 3 RPin = %g, want unused sentinel", pins[2].RPin)
	}
}

func TestDiffPinRowValidation(t *testing.T) {
	cfg := `[Component] c
[Diff Pin]
1 2 0.2 1n
3 4 0.2 1n 0.5n 2n
5 6 0.2 1n 2n
`
	top, err := Parse(writeConfig(t, "diff.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	dps := top.Components[0].DiffPins
	if len(dps) != 2 {
		t.Fatalf("got %d diff pins, want 2 (5-token row invalid)", len(dps))
	}
	if dps[0].Tdelay.Typ != 1e-9 || !unit.IsNA(dps[0].Tdelay.Min) {
		t.Errorf("diff pin 0 delay = %+v", dps[0].Tdelay)
	}
	if dps[1].Tdelay.Max != 2e-9 {
		t.Errorf("diff pin 1 delay = %+v", dps[1].Tdelay)
	}
}

func TestSeriesRecordOrderIndependent(t *testing.T) {
	before := `[Model] m1
[Series MOSFET]
[Vds] 1.0 2.0
[R Series] 10 8 12
[On]
[Model Type] Series
`
	after := `[Model] m2
[Model Type] Series_switch
[Vds] 0.5
[Off]
`
	for name, cfg := range map[string]string{"before": before, "after": after} {
		top, err := Parse(writeConfig(t, name+".s2i", cfg))
		if err != nil {
			t.Fatal(err)
		}
		m := top.Models[0]
		if m.Series == nil {
			t.Fatalf("%s: series record not attached", name)
		}
		if len(m.Series.Vds) == 0 {
			t.Errorf("%s: no Vds points", name)
		}
	}
}

func TestSeriesRecordDroppedForNonSeriesType(t *testing.T) {
	cfg := "[Model] m\n[Vds] 1.0\n[Model Type] io\n"
	top, err := Parse(writeConfig(t, "notseries.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	if top.Models[0].Series != nil {
		t.Error("series record attached to a non-series model")
	}
}

func TestIncludeWithCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.s2i")
	b := filepath.Join(dir, "b.s2i")
	os.WriteFile(a, []byte("[IBIS Ver] 4.2\n[Include] b.s2i\n"), 0o644)
	os.WriteFile(b, []byte("[Include] a.s2i\n[Component] inner\n"), 0o644)

	top, err := Parse(a)
	if err != nil {
		t.Fatal(err)
	}
	if top.Global.IbisVer != 4.2 {
		t.Errorf("IbisVer = %g", top.Global.IbisVer)
	}
	if len(top.Components) != 1 || top.Components[0].Name != "inner" {
		t.Errorf("included component missing: %+v", top.Components)
	}
}

func TestScopeInheritanceAtParseTime(t *testing.T) {
	cfg := `[Temperature Range] 27 0 100
[Component] c
[Temperature Range] 50
[Model] m
[Temperature Range] 75
[Model Type] output
`
	top, err := Parse(writeConfig(t, "scope.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	if top.Global.TempRange.Typ != 27 || top.Global.TempRange.Max != 100 {
		t.Errorf("global temp = %+v", top.Global.TempRange)
	}
	if top.Components[0].TempRange.Typ != 50 {
		t.Errorf("component temp = %+v", top.Components[0].TempRange)
	}
	if top.Models[0].TempRange.Typ != 75 {
		t.Errorf("model temp = %+v", top.Models[0].TempRange)
	}
}

func TestWaveformPositionalParams(t *testing.T) {
	cfg := `[Model] m
[Model Type] output
[Rising Waveform] 50 3.3 3.0 3.6 1n 2p
[Falling Waveform] 500 0.0
`
	top, err := Parse(writeConfig(t, "wave.s2i", cfg))
	if err != nil {
		t.Fatal(err)
	}
	m := top.Models[0]
	if len(m.RisingWaves) != 1 || len(m.FallingWaves) != 1 {
		t.Fatalf("waveform counts: %d rising, %d falling", len(m.RisingWaves), len(m.FallingWaves))
	}
	r := m.RisingWaves[0]
	if r.RFixture != 50 || r.VFixtureMax != 3.6 || r.LFixture != 1e-9 || r.CFixture != 2e-12 {
		t.Errorf("rising fixture = %+v", r)
	}
	if !unit.IsNA(r.RDut) {
		t.Errorf("RDut should stay unset, got %g", r.RDut)
	}
	if m.FallingWaves[0].RFixture != 500 {
		t.Errorf("falling fixture = %+v", m.FallingWaves[0])
	}
}
