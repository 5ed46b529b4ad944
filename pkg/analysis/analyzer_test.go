package analysis

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/spice"
)

// stubSim fakes the simulator: DC decks get a short VI table, transient
// decks a linear 0-to-3.3V edge over the deck's .TRAN duration. It
// counts invocations per deck base name.
type stubSim struct {
	runs  int
	decks []string
	empty []string // deck base substrings that get headers but no rows
}

func (s *stubSim) run(ctx context.Context, argv []string, stdoutTo, msgPath string) error {
	s.runs++
	inPath := argv[2]
	outPath := argv[4] // hspice -i in -o out
	s.decks = append(s.decks, filepath.Base(inPath))
	for _, sub := range s.empty {
		if strings.Contains(filepath.Base(inPath), sub) {
			return os.WriteFile(outPath, []byte("x\n volt current\n"), 0o644)
		}
	}
	deck, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	var out strings.Builder
	if strings.Contains(string(deck), ".TRAN") {
		out.WriteString("x\n time volt\n")
		for i := 0; i <= 50; i++ {
			tm := float64(i) / 50 * 10e-9
			fmt.Fprintf(&out, " %e %e\n", tm, 3.3*float64(i)/50)
		}
	} else {
		out.WriteString("x\n volt current\n")
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&out, " %e %e\n", float64(i)*0.25, -1e-3*float64(i))
		}
		out.WriteString("y\n")
	}
	return os.WriteFile(outPath, []byte(out.String()), 0o644)
}

func testSetup(t *testing.T) (*ibis.TOP, *ibis.Component, *stubSim, *Analyzer) {
	t.Helper()
	dir := t.TempDir()
	netlist := filepath.Join(dir, "buf.spi")
	if err := os.WriteFile(netlist, []byte("X1 in out vcc vss buf\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := ibis.NewModel("io")
	m.Type = ibis.IO
	m.PullupRef = ibis.TMM(3.3, 3.0, 3.6)
	m.PulldownRef = ibis.TMM(0, 0, 0)
	m.PowerClampRef = ibis.TMM(3.3, 3.0, 3.6)
	m.GndClampRef = ibis.TMM(0, 0, 0)
	m.SimTime = 10e-9

	c := ibis.NewComponent("test")
	c.SpiceFile = netlist

	out := ibis.NewPin("1")
	out.SpiceNode = "out"
	out.ModelName = "io"
	out.Model = m
	out.InputPin = "2"

	in := ibis.NewPin("2")
	in.SpiceNode = "in"
	in.ModelName = "NC"

	pwr := ibis.NewPin("3")
	pwr.SpiceNode = "vcc"
	pwr.ModelName = "POWER"

	gnd := ibis.NewPin("4")
	gnd.SpiceNode = "vss"
	gnd.ModelName = "GND"

	c.Pins = []*ibis.Pin{out, in, pwr, gnd}

	top := &ibis.TOP{
		Components: []*ibis.Component{c},
		Models:     []*ibis.Model{m},
	}

	sim := &stubSim{}
	env := &spice.Env{
		Dialect: spice.DialectFor("hspice"),
		Command: "hspice",
		WorkDir: dir,
		Cleanup: true,
		Run:     sim.run,
	}
	return top, c, sim, New(env, top)
}

func TestAnalyzePinFullSequence(t *testing.T) {
	top, c, sim, a := testSetup(t)
	m := top.Models[0]

	errs := a.AnalyzePin(context.Background(), c, c.Pins[0])
	if errs != 0 {
		t.Fatalf("errs = %d", errs)
	}
	if !m.Analyzed() {
		t.Error("model not marked analyzed")
	}

	// IO without an enable: pullup, pulldown, both clamps, both ramps.
	// Three corners each.
	if sim.runs != 6*3 {
		t.Errorf("simulator ran %d times, want 18: %v", sim.runs, sim.decks)
	}

	for name, tbl := range map[string]*ibis.VITable{
		"pullup": m.Pullup, "pulldown": m.Pulldown,
		"power clamp": m.PowerClamp, "gnd clamp": m.GndClamp,
	} {
		if tbl == nil || tbl.Size == 0 {
			t.Errorf("%s table missing", name)
		}
	}
	if math.Abs(m.Ramp.DVRise.Typ-0.6*3.3) > 1e-9 {
		t.Errorf("rising dV = %g, want the 20-80 window of a 3.3V edge", m.Ramp.DVRise.Typ)
	}
	if math.IsNaN(m.Ramp.DtFall.Min) || math.IsNaN(m.Ramp.DtFall.Max) {
		t.Error("falling ramp corners missing")
	}
}

func TestAnalyzePinMemoized(t *testing.T) {
	top, c, sim, a := testSetup(t)
	m := top.Models[0]

	// Second pin drives the same model.
	out2 := ibis.NewPin("5")
	out2.SpiceNode = "out"
	out2.ModelName = "io"
	out2.Model = m
	out2.InputPin = "2"
	c.Pins = append(c.Pins, out2)

	a.AnalyzePin(context.Background(), c, c.Pins[0])
	first := sim.runs
	a.AnalyzePin(context.Background(), c, out2)
	if sim.runs != first {
		t.Errorf("analyzed model reran curves: %d then %d runs", first, sim.runs)
	}
}

func TestAnalyzePinEnableSubtraction(t *testing.T) {
	top, c, sim, a := testSetup(t)
	m := top.Models[0]
	m.Type = ibis.ThreeState

	en := ibis.NewPin("6")
	en.SpiceNode = "en"
	en.ModelName = "NC"
	c.Pins = append(c.Pins, en)
	c.Pins[0].EnablePin = "6"

	errs := a.AnalyzePin(context.Background(), c, c.Pins[0])
	if errs != 0 {
		t.Fatalf("errs = %d", errs)
	}
	// Disabled curves double the pullup and pulldown runs: 8 curves.
	if sim.runs != 8*3 {
		t.Errorf("simulator ran %d times, want 24: %v", sim.runs, sim.decks)
	}
	// The stub returns identical enabled and disabled curves, so the
	// subtracted currents are exactly zero.
	for _, e := range m.PullupData.Entries {
		if e.I.Typ != 0 {
			t.Fatalf("leakage not subtracted: %+v", e)
		}
	}
}

func TestAnalyzePinSkipsNoModel(t *testing.T) {
	_, c, sim, a := testSetup(t)
	c.Pins[0].Model.Type = ibis.NoModel
	if errs := a.AnalyzePin(context.Background(), c, c.Pins[0]); errs != 0 {
		t.Fatalf("errs = %d", errs)
	}
	if sim.runs != 0 {
		t.Errorf("nomodel pin simulated %d times", sim.runs)
	}
}

func TestAnalyzePinMissingInputReference(t *testing.T) {
	_, c, sim, a := testSetup(t)
	c.Pins[0].InputPin = "99"
	if errs := a.AnalyzePin(context.Background(), c, c.Pins[0]); errs != 1 {
		t.Fatalf("errs = %d, want 1", errs)
	}
	if sim.runs != 0 {
		t.Error("pin with dangling input reference still simulated")
	}
}

func TestAnalyzeComponentSkipsReserved(t *testing.T) {
	_, c, sim, a := testSetup(t)
	errs := a.AnalyzeComponent(context.Background(), c)
	if errs != 0 {
		t.Fatalf("errs = %d", errs)
	}
	for _, deck := range sim.decks {
		if strings.Contains(deck, "_3") || strings.Contains(deck, "_4") {
			t.Fatalf("reserved pin simulated: %s", deck)
		}
	}
}

func TestSeriesSweepsRunPerVds(t *testing.T) {
	top, c, sim, a := testSetup(t)
	m := top.Models[0]
	m.Type = ibis.SeriesSwitch
	m.Series = &ibis.SeriesModel{Vds: []float64{0.5, 1.0, 1.5}}
	c.SeriesPinMaps = []*ibis.SeriesPinMap{{Pin1: "1", Pin2: "2", ModelName: "io"}}

	errs := a.AnalyzePin(context.Background(), c, c.Pins[0])
	if errs != 0 {
		t.Fatalf("errs = %d", errs)
	}
	if len(m.Series.Tables) != 3 {
		t.Fatalf("got %d series tables, want 3", len(m.Series.Tables))
	}
	if m.Series.Pending() {
		t.Error("series sweeps still pending")
	}
	// Series_switch runs no pullup/pulldown/clamp/transient curves, so
	// only the Vds sweeps hit the simulator.
	if sim.runs != 3*3 {
		t.Errorf("simulator ran %d times, want 9", sim.runs)
	}

	// Later Vds additions re-enter analysis despite memoization.
	m.Series.Vds = append(m.Series.Vds, 2.0)
	a.AnalyzePin(context.Background(), c, c.Pins[0])
	if len(m.Series.Tables) != 4 {
		t.Errorf("got %d series tables after re-entry, want 4", len(m.Series.Tables))
	}
}

func TestSeriesFailedSweepKeepsVdsAlignment(t *testing.T) {
	top, c, sim, a := testSetup(t)
	m := top.Models[0]
	m.Type = ibis.SeriesSwitch
	m.Series = &ibis.SeriesModel{Vds: []float64{1.0, 2.0}}
	c.SeriesPinMaps = []*ibis.SeriesPinMap{{Pin1: "1", Pin2: "2", ModelName: "io"}}
	sim.empty = []string{"_0."} // every corner of the first Vds sweep

	errs := a.AnalyzePin(context.Background(), c, c.Pins[0])
	if errs == 0 {
		t.Fatal("failed sweep reported no errors")
	}
	if len(m.Series.Tables) != 2 {
		t.Fatalf("got %d series tables, want one slot per Vds", len(m.Series.Tables))
	}
	if m.Series.Tables[0] != nil {
		t.Error("failed sweep should leave a nil table slot")
	}
	if m.Series.Tables[1] == nil || m.Series.Tables[1].Size == 0 {
		t.Error("surviving sweep lost its table")
	}
}

func TestWaveformsDescendingFixture(t *testing.T) {
	top, c, _, a := testSetup(t)
	m := top.Models[0]
	m.RisingWaves = []*ibis.Waveform{
		{RFixture: 50, VFixture: 0},
		{RFixture: 500, VFixture: 3.3},
	}

	if errs := a.AnalyzePin(context.Background(), c, c.Pins[0]); errs != 0 {
		t.Fatalf("errs = %d", errs)
	}
	if m.RisingWaves[0].RFixture != 500 {
		t.Error("waveforms not ordered heaviest load first")
	}
	for i, w := range m.RisingWaves {
		if w.Table == nil || w.Table.Size == 0 {
			t.Fatalf("waveform %d has no table", i)
		}
	}
}
