// Package output serializes a populated document to IBIS text. It is a
// formatting layer only: every number it writes was computed upstream.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

const rule = "|************************************************************************"

// ibsWriter accumulates the first write error so section emitters can
// stay unconditional.
type ibsWriter struct {
	w   io.Writer
	err error
}

func (b *ibsWriter) printf(format string, args ...any) {
	if b.err != nil {
		return
	}
	_, b.err = fmt.Fprintf(b.w, format, args...)
}

// WriteFile serializes top to path.
func WriteFile(path string, top *ibis.TOP) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	defer f.Close()
	return Write(f, top)
}

// Write serializes the whole document: header, components in reverse
// parse order, models in parse order, [End].
func Write(w io.Writer, top *ibis.TOP) error {
	b := &ibsWriter{w: w}

	writeHeader(b, top.Global)
	for i := len(top.Components) - 1; i >= 0; i-- {
		writeComponent(b, top.Components[i])
	}
	for _, m := range top.Models {
		writeModel(b, m, top.Global)
	}

	b.printf("%s\n[End]\n", rule)
	return b.err
}

func writeHeader(b *ibsWriter, g *ibis.Global) {
	b.printf("%s\n", rule)
	ver := g.IbisVer
	if unit.IsNA(ver) {
		ver = 3.2
	}
	b.printf("[IBIS Ver]       %.1f\n", ver)
	if g.FileName != "" {
		b.printf("[File Name]      %s\n", g.FileName)
	}
	if g.FileRev != "" {
		b.printf("[File Rev]       %s\n", g.FileRev)
	}
	date := g.Date
	if date == "" {
		date = time.Now().Format("January 2, 2006")
	}
	b.printf("[Date]           %s\n", date)
	if g.Source != "" {
		b.printf("[Source]         %s\n", g.Source)
	}
	if g.Notes != "" {
		b.printf("[Notes]          %s\n", g.Notes)
	}
	if g.Disclaimer != "" {
		b.printf("[Disclaimer]     %s\n", g.Disclaimer)
	}
	if g.Copyright != "" {
		b.printf("[Copyright]      %s\n", g.Copyright)
	}
}

// rlc formats a package or pin parasitic, where the unused marker and
// the NA sentinel both print as NA.
func rlc(v float64) string {
	if v == ibis.UnusedRLC {
		return "NA"
	}
	return unit.Format(v)
}

func tmmLine(b *ibsWriter, label string, t ibis.TypMinMax) {
	b.printf("%-16s %-15s %-15s %-15s\n",
		label, unit.Format(t.Typ), unit.Format(t.Min), unit.Format(t.Max))
}

func writeComponent(b *ibsWriter, c *ibis.Component) {
	b.printf("%s\n[Component]      %s\n", rule, c.Name)
	if c.Manufacturer != "" {
		b.printf("[Manufacturer]   %s\n", c.Manufacturer)
	}
	if c.PackageModel != "" {
		b.printf("[Package Model]  %s\n", c.PackageModel)
	}

	b.printf("[Package]\n| variable       typ             min             max\n")
	tmmLine(b, "R_pkg", c.RPkg)
	tmmLine(b, "L_pkg", c.LPkg)
	tmmLine(b, "C_pkg", c.CPkg)

	b.printf("[Pin]  signal_name          model_name           R_pin   L_pin   C_pin\n")
	for _, p := range c.Pins {
		b.printf("%-6s %-20s %-20s %-7s %-7s %-7s\n",
			p.Name, p.SignalName, p.ModelName, rlc(p.RPin), rlc(p.LPin), rlc(p.CPin))
	}

	if c.HasPinMapping && len(c.PinMaps) > 0 {
		b.printf("[Pin Mapping]  pulldown_ref  pullup_ref  gnd_clamp_ref  power_clamp_ref\n")
		for _, pm := range c.PinMaps {
			b.printf("%-14s %-13s %-11s %-14s %s\n",
				pm.Pin, orNC(pm.PulldownRef), orNC(pm.PullupRef),
				orNC(pm.GndClampRef), orNC(pm.PowerClampRef))
		}
	}

	if len(c.DiffPins) > 0 {
		b.printf("[Diff Pin]  inv_pin  vdiff  tdelay_typ  tdelay_min  tdelay_max\n")
		for _, d := range c.DiffPins {
			b.printf("%-11s %-8s %-6s %-11s %-11s %s\n",
				d.Pin, d.InvPin, unit.Format(d.Vdiff),
				unit.Format(d.Tdelay.Typ), unit.Format(d.Tdelay.Min), unit.Format(d.Tdelay.Max))
		}
	}

	if len(c.SeriesPinMaps) > 0 {
		b.printf("[Series Pin Mapping]  pin_2  model_name  function_table_group\n")
		for _, s := range c.SeriesPinMaps {
			b.printf("%-21s %-6s %-11s %s\n", s.Pin1, s.Pin2, s.ModelName, s.Group)
		}
	}
	if len(c.SeriesSwitchGroups) > 0 {
		b.printf("[Series Switch Groups]\n")
		for _, g := range c.SeriesSwitchGroups {
			b.printf("On %s /\n", g)
		}
	}
}

func orNC(bus string) string {
	if bus == "" {
		return "NC"
	}
	return bus
}

func writeModel(b *ibsWriter, m *ibis.Model, g *ibis.Global) {
	b.printf("%s\n[Model]          %s\n", rule, m.Name)
	b.printf("Model_type       %s\n", m.Type)
	if m.Polarity != "" {
		b.printf("Polarity         %s\n", m.Polarity)
	}
	if m.Enable != "" {
		b.printf("Enable           %s\n", m.Enable)
	}
	subParam(b, "Vinl", m.Vinl.Typ)
	subParam(b, "Vinh", m.Vinh.Typ)
	subParam(b, "Vmeas", m.Vmeas.Typ)
	subParam(b, "Cref", m.Cref.Typ)
	subParam(b, "Rref", m.Rref.Typ)
	subParam(b, "Vref", m.Vref.Typ)
	if m.CComp.AnySet() {
		tmmLine(b, "C_comp", m.CComp)
	}

	b.printf("[Temperature Range] %s %s %s\n",
		unit.Format(m.TempRange.Typ), unit.Format(m.TempRange.Min), unit.Format(m.TempRange.Max))
	b.printf("[Voltage Range]  %s %s %s\n",
		unit.Format(m.VoltageRange.Typ), unit.Format(m.VoltageRange.Min), unit.Format(m.VoltageRange.Max))
	refLine(b, "[Pullup Reference]", m.PullupRef)
	refLine(b, "[Pulldown Reference]", m.PulldownRef)
	refLine(b, "[POWER Clamp Reference]", m.PowerClampRef)
	refLine(b, "[GND Clamp Reference]", m.GndClampRef)
	if m.Rgnd.AnySet() {
		tmmLine(b, "[Rgnd]", m.Rgnd)
	}
	if m.Rpower.AnySet() {
		tmmLine(b, "[Rpower]", m.Rpower)
	}
	if m.Rac.AnySet() {
		tmmLine(b, "[Rac]", m.Rac)
	}
	if m.Cac.AnySet() {
		tmmLine(b, "[Cac]", m.Cac)
	}

	if m.Series != nil {
		writeSeries(b, m.Series)
	}

	viTable(b, "[Pulldown]", m.Pulldown)
	viTable(b, "[Pullup]", m.Pullup)
	viTable(b, "[GND Clamp]", m.GndClamp)
	viTable(b, "[POWER Clamp]", m.PowerClamp)

	writeRamp(b, m.Ramp)
	for _, w := range m.RisingWaves {
		waveform(b, "[Rising Waveform]", w, g)
	}
	for _, w := range m.FallingWaves {
		waveform(b, "[Falling Waveform]", w, g)
	}
}

func subParam(b *ibsWriter, name string, v float64) {
	if unit.IsNA(v) {
		return
	}
	b.printf("%-16s = %s\n", name, unit.Format(v))
}

func refLine(b *ibsWriter, keyword string, t ibis.TypMinMax) {
	if !t.AnySet() {
		return
	}
	b.printf("%-24s %s %s %s\n", keyword,
		unit.Format(t.Typ), unit.Format(t.Min), unit.Format(t.Max))
}

// volt formats a table voltage: up to ten significant digits, NA for
// unset.
func volt(v float64) string {
	if unit.IsNA(v) {
		return "NA"
	}
	return fmt.Sprintf("%.10g", v)
}

func viTable(b *ibsWriter, keyword string, t *ibis.VITable) {
	if t == nil || t.Size == 0 {
		return
	}
	b.printf("%s\n| voltage          I(typ)          I(min)          I(max)\n", keyword)
	for _, e := range t.Entries {
		b.printf(" %-17s %-15s %-15s %s\n",
			volt(e.V), unit.Format(e.I.Typ), unit.Format(e.I.Min), unit.Format(e.I.Max))
	}
}

// rampToken renders one corner as the combined "<dv>/<dt>n" form with
// the time in nanoseconds.
func rampToken(dv, dt float64) string {
	if unit.IsNA(dv) || unit.IsNA(dt) {
		return "NA"
	}
	return fmt.Sprintf("%.4g/%.4gn", dv, dt*1e9)
}

func writeRamp(b *ibsWriter, r ibis.Ramp) {
	rise := r.DVRise.AnySet() && r.DtRise.AnySet()
	fall := r.DVFall.AnySet() && r.DtFall.AnySet()
	if !rise && !fall {
		return
	}
	b.printf("[Ramp]\n| variable       typ             min             max\n")
	if rise {
		b.printf("%-16s %-15s %-15s %s\n", "dV/dt_r",
			rampToken(r.DVRise.Typ, r.DtRise.Typ),
			rampToken(r.DVRise.Min, r.DtRise.Min),
			rampToken(r.DVRise.Max, r.DtRise.Max))
	}
	if fall {
		b.printf("%-16s %-15s %-15s %s\n", "dV/dt_f",
			rampToken(r.DVFall.Typ, r.DtFall.Typ),
			rampToken(r.DVFall.Min, r.DtFall.Min),
			rampToken(r.DVFall.Max, r.DtFall.Max))
	}
}

// waveTime prints a sample time in nanoseconds with fixed precision.
func waveTime(t float64) string {
	return fmt.Sprintf("%.4fn", t*1e9)
}

func fixtureParam(b *ibsWriter, name string, v float64) {
	if unit.IsNA(v) || v == 0 {
		return
	}
	b.printf("%s = %s\n", name, unit.Format(v))
}

func waveform(b *ibsWriter, keyword string, w *ibis.Waveform, g *ibis.Global) {
	if w.Table == nil || w.Table.Size == 0 {
		return
	}
	b.printf("%s\n", keyword)
	b.printf("R_fixture = %s\n", unit.Format(w.RFixture))
	b.printf("V_fixture = %s\n", unit.Format(w.VFixture))
	fixtureParam(b, "V_fixture_min", w.VFixtureMin)
	fixtureParam(b, "V_fixture_max", w.VFixtureMax)
	fixtureParam(b, "L_fixture", w.LFixture)
	fixtureParam(b, "C_fixture", w.CFixture)
	fixtureParam(b, "R_dut", w.RDut)
	fixtureParam(b, "L_dut", w.LDut)
	fixtureParam(b, "C_dut", w.CDut)

	b.printf("| time             V(typ)          V(min)          V(max)\n")
	for _, e := range w.Table.Entries {
		b.printf(" %-17s %-15s %-15s %s\n",
			waveTime(e.T), volt(e.V.Typ), volt(e.V.Min), volt(e.V.Max))
	}

	// Composite current entered the format with IBIS 5.0.
	if !unit.IsNA(g.IbisVer) && g.IbisVer >= 5.0 && w.Table.HasCurrent() {
		b.printf("[Composite Current]\n| time             I(typ)          I(min)          I(max)\n")
		for _, e := range w.Table.Entries {
			b.printf(" %-17s %-15s %-15s %s\n",
				waveTime(e.T), unit.Format(e.I.Typ), unit.Format(e.I.Min), unit.Format(e.I.Max))
		}
	}
}

func writeSeries(b *ibsWriter, s *ibis.SeriesModel) {
	if s.RSeries.AnySet() {
		tmmLine(b, "[R Series]", s.RSeries)
	}
	if s.On {
		b.printf("[On]\n")
	}
	for i, t := range s.Tables {
		if i >= len(s.Vds) {
			break
		}
		if t == nil || len(t.Entries) == 0 {
			continue
		}
		b.printf("[Series MOSFET]\nVds = %s\n", unit.Format(s.Vds[i]))
		b.printf("| voltage          I(typ)          I(min)          I(max)\n")
		for _, e := range t.Entries {
			b.printf(" %-17s %-15s %-15s %s\n",
				volt(e.V), unit.Format(e.I.Typ), unit.Format(e.I.Min), unit.Format(e.I.Max))
		}
	}
	if s.Off {
		b.printf("[Off]\n")
	}
}
