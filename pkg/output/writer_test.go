package output

import (
	"strings"
	"testing"

	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

func testDoc() *ibis.TOP {
	top := ibis.NewTOP()
	top.Global.IbisVer = 3.2
	top.Global.FileName = "test.ibs"
	top.Global.Date = "August 29, 2026"

	c1 := ibis.NewComponent("first")
	c2 := ibis.NewComponent("second")
	p := ibis.NewPin("1")
	p.SignalName = "SIG1"
	p.ModelName = "io"
	c1.Pins = []*ibis.Pin{p}

	m := ibis.NewModel("io")
	m.Type = ibis.IO
	m.VoltageRange = ibis.TMM(3.3, 3.0, 3.6)
	m.TempRange = ibis.TMM(27, 100, 0)

	tbl := ibis.NewVITable(0)
	e := ibis.VIEntry{V: -3.3, I: ibis.NewTMM()}
	e.I.Typ = 0.0123
	tbl.Append(e)
	m.Pullup = tbl

	top.Components = []*ibis.Component{c1, c2}
	top.Models = []*ibis.Model{m}
	return top
}

func render(t *testing.T, top *ibis.TOP) string {
	t.Helper()
	var b strings.Builder
	if err := Write(&b, top); err != nil {
		t.Fatal(err)
	}
	return b.String()
}

func TestWriteSeriesSkipsFailedVds(t *testing.T) {
	top := testDoc()
	m := top.Models[0]
	m.Type = ibis.SeriesSwitch

	tbl := ibis.NewVITable(0)
	e := ibis.VIEntry{V: 0.5, I: ibis.NewTMM()}
	e.I.Typ = 2e-3
	tbl.Append(e)
	// The first Vds sweep failed and left a nil slot; the second table
	// must still be labeled with its own Vds.
	m.Series = &ibis.SeriesModel{
		Vds:    []float64{1.0, 2.0},
		Tables: []*ibis.VITable{nil, tbl},
	}

	out := render(t, top)
	if !strings.Contains(out, "Vds = 2") {
		t.Fatalf("surviving table lost its Vds label:\n%s", out)
	}
	if strings.Contains(out, "Vds = 1") {
		t.Errorf("failed sweep's Vds emitted:\n%s", out)
	}
}

func TestWriteComponentsReversed(t *testing.T) {
	out := render(t, testDoc())
	i := strings.Index(out, "[Component]      second")
	j := strings.Index(out, "[Component]      first")
	if i < 0 || j < 0 {
		t.Fatalf("components missing:\n%s", out)
	}
	if i > j {
		t.Error("components not written in reverse parse order")
	}
}

func TestWriteModelTypeToken(t *testing.T) {
	out := render(t, testDoc())
	if !strings.Contains(out, "Model_type       I/O") {
		t.Errorf("exact IBIS type token missing:\n%s", out)
	}
}

func TestWriteHeaderAndEnd(t *testing.T) {
	out := render(t, testDoc())
	if !strings.Contains(out, "[IBIS Ver]       3.2") {
		t.Error("version header missing")
	}
	if !strings.Contains(out, "[File Name]      test.ibs") {
		t.Error("file name missing")
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "[End]") {
		t.Error("document must terminate with [End]")
	}
}

func TestWriteVITableFormatting(t *testing.T) {
	out := render(t, testDoc())
	if !strings.Contains(out, "[Pullup]") {
		t.Fatal("pullup table missing")
	}
	// Currents carry SI prefixes, unset corners the NA literal.
	if !strings.Contains(out, "12.3m") {
		t.Errorf("current not SI-formatted:\n%s", out)
	}
	row := findLine(out, "-3.3")
	if row == "" || strings.Count(row, "NA") != 2 {
		t.Errorf("unset min/max corners should print NA: %q", row)
	}
	// Empty tables produce no section at all.
	if strings.Contains(out, "[GND Clamp]") {
		t.Error("empty clamp table written")
	}
}

func TestWritePackageNA(t *testing.T) {
	out := render(t, testDoc())
	rpkg := findLine(out, "R_pkg")
	if strings.Count(rpkg, "NA") != 3 {
		t.Errorf("unset package parasitics should print NA: %q", rpkg)
	}
	pinRow := findLine(out, "SIG1")
	if strings.Count(pinRow, "NA") != 3 {
		t.Errorf("unused pin parasitics should print NA: %q", pinRow)
	}
}

func TestWriteRampToken(t *testing.T) {
	top := testDoc()
	m := top.Models[0]
	m.Ramp.DVRise = ibis.TMM(1.98, 1.98, 1.98)
	m.Ramp.DtRise = ibis.TMM(1.8e-9, 2.5e-9, 1.2e-9)

	out := render(t, top)
	row := findLine(out, "dV/dt_r")
	if !strings.Contains(row, "1.98/1.8n") {
		t.Errorf("combined ramp token missing: %q", row)
	}
	if !strings.Contains(row, "1.98/2.5n") || !strings.Contains(row, "1.98/1.2n") {
		t.Errorf("corner tokens wrong: %q", row)
	}
	if strings.Contains(out, "dV/dt_f") {
		t.Error("falling ramp written without data")
	}
}

func waveModel(withCurrent bool) *ibis.Waveform {
	wt := ibis.NewWaveTable(0)
	for i := 0; i < 3; i++ {
		e := ibis.WaveEntry{T: float64(i) * 5e-9, V: ibis.NewTMM(), I: ibis.NewTMM()}
		e.V.Typ = float64(i)
		if withCurrent {
			e.I.Typ = 1e-3
		}
		wt.Entries = append(wt.Entries, e)
	}
	wt.SetSize()
	return &ibis.Waveform{RFixture: 50, VFixture: 0, Table: wt}
}

func TestWriteWaveformTimes(t *testing.T) {
	top := testDoc()
	top.Models[0].RisingWaves = []*ibis.Waveform{waveModel(false)}

	out := render(t, top)
	if !strings.Contains(out, "[Rising Waveform]") {
		t.Fatal("waveform section missing")
	}
	if !strings.Contains(out, "R_fixture = 50") {
		t.Errorf("fixture missing:\n%s", out)
	}
	for _, want := range []string{"0.0000n", "5.0000n", "10.0000n"} {
		if !strings.Contains(out, want) {
			t.Errorf("time %s missing:\n%s", want, out)
		}
	}
}

func TestCompositeCurrentGate(t *testing.T) {
	top := testDoc()
	top.Models[0].RisingWaves = []*ibis.Waveform{waveModel(true)}

	// Declared version below 5.0 suppresses the table even with data.
	out := render(t, top)
	if strings.Contains(out, "[Composite Current]") {
		t.Error("composite current written for IBIS 3.2")
	}

	top.Global.IbisVer = 5.0
	out = render(t, top)
	if !strings.Contains(out, "[Composite Current]") {
		t.Error("composite current missing for IBIS 5.0")
	}

	// Version 5.0 but no current data: no table.
	top.Models[0].RisingWaves = []*ibis.Waveform{waveModel(false)}
	out = render(t, top)
	if strings.Contains(out, "[Composite Current]") {
		t.Error("composite current written without samples")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, v := range []float64{1.23e-12, 4.7e-9, 3.3, 150, 2.2e6} {
		s := unit.Format(v)
		got, err := unit.Parse(s)
		if err != nil {
			t.Fatalf("Parse(Format(%g)) = %q: %v", v, s, err)
		}
		if rel := (got - v) / v; rel > 5e-4 || rel < -5e-4 {
			t.Errorf("round trip %g -> %q -> %g", v, s, got)
		}
	}
}

func findLine(text, needle string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	return ""
}
