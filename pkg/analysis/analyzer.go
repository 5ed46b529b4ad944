package analysis

import (
	"context"
	"sort"
	"strings"

	"github.com/golang/glog"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/spice"
	"spice2ibis/pkg/unit"
)

// Analyzer walks components and pins, runs every curve each pin's model
// calls for, and leaves the results in the model records.
type Analyzer struct {
	Env *spice.Env
	Top *ibis.TOP
}

func New(env *spice.Env, top *ibis.TOP) *Analyzer {
	return &Analyzer{Env: env, Top: top}
}

// RunAll analyzes every component and returns the total error count.
func (a *Analyzer) RunAll(ctx context.Context) int {
	total := 0
	for _, c := range a.Top.Components {
		if err := ctx.Err(); err != nil {
			glog.Warningf("analysis canceled: %v", err)
			break
		}
		total += a.AnalyzeComponent(ctx, c)
	}
	return total
}

// AnalyzeComponent runs every non-reserved pin of one component.
func (a *Analyzer) AnalyzeComponent(ctx context.Context, c *ibis.Component) int {
	glog.Infof("analyzing component %s (%d pins)", c.Name, len(c.Pins))
	errs := 0
	for _, pin := range c.Pins {
		if err := ctx.Err(); err != nil {
			glog.Warningf("component %s: canceled: %v", c.Name, err)
			break
		}
		if ibis.IsReservedModelName(pin.ModelName) {
			continue
		}
		errs += a.AnalyzePin(ctx, c, pin)
	}
	return errs
}

// FindSupplyPins locates the power and ground pins that bias pin's
// buffer. Components with explicit pin mapping match the pin's declared
// rails; everything else takes the first POWER and first GND pin. A
// missing supply is logged, not fatal: the deck simply omits that rail.
func FindSupplyPins(c *ibis.Component, pin *ibis.Pin) (power, gnd *ibis.Pin) {
	if c.HasPinMapping {
		if pm := findPinMap(c, pin.Name); pm != nil {
			power = findRailPin(c, "POWER", pm.PullupRef)
			gnd = findRailPin(c, "GND", pm.PulldownRef)
		}
	}
	if power == nil {
		power = firstReserved(c, "POWER")
	}
	if gnd == nil {
		gnd = firstReserved(c, "GND")
	}
	if power == nil {
		glog.Errorf("component %s: no POWER pin for pin %s", c.Name, pin.Name)
	}
	if gnd == nil {
		glog.Errorf("component %s: no GND pin for pin %s", c.Name, pin.Name)
	}
	return power, gnd
}

func findPinMap(c *ibis.Component, pinName string) *ibis.PinMap {
	for _, pm := range c.PinMaps {
		if pm.Pin == pinName {
			return pm
		}
	}
	return nil
}

// findRailPin returns the reserved pin of the given kind that shares the
// named rail bus in the component's pin mapping.
func findRailPin(c *ibis.Component, kind, bus string) *ibis.Pin {
	if bus == "" || strings.EqualFold(bus, "NC") {
		return nil
	}
	for _, pm := range c.PinMaps {
		if pm.PullupRef != bus && pm.PulldownRef != bus {
			continue
		}
		p := c.FindPin(pm.Pin)
		if p != nil && strings.EqualFold(p.ModelName, kind) {
			return p
		}
	}
	return nil
}

func firstReserved(c *ibis.Component, kind string) *ibis.Pin {
	for _, p := range c.Pins {
		if strings.EqualFold(p.ModelName, kind) {
			return p
		}
	}
	return nil
}

// jobFor assembles the common parts of every simulation job for a pin.
// It reports false when an input or enable reference cannot be resolved,
// which skips the pin's analysis.
func (a *Analyzer) jobFor(c *ibis.Component, pin *ibis.Pin) (*spice.Job, bool) {
	j := &spice.Job{
		Comp:  c,
		Model: pin.Model,
		Pin:   pin,
		Index: -1,
	}
	if power, gnd := FindSupplyPins(c, pin); power != nil || gnd != nil {
		if power != nil {
			j.PowerNode = power.SpiceNode
		}
		if gnd != nil {
			j.GndNode = gnd.SpiceNode
		}
	}
	if pin.InputPin != "" {
		p := c.FindPin(pin.InputPin)
		if p == nil {
			glog.Errorf("component %s pin %s: input pin %q not found, skipping analysis",
				c.Name, pin.Name, pin.InputPin)
			return nil, false
		}
		j.InputNode = p.SpiceNode
	}
	if pin.EnablePin != "" {
		p := c.FindPin(pin.EnablePin)
		if p == nil {
			glog.Errorf("component %s pin %s: enable pin %q not found, skipping analysis",
				c.Name, pin.Name, pin.EnablePin)
			return nil, false
		}
		j.EnableNode = p.SpiceNode
	}
	return j, true
}

// AnalyzePin runs the full curve sequence for one pin's model. Curves
// already generated for the model through another pin are not rerun,
// except pending series Vds sweeps, which fire on every visit. Errors
// accumulate; they never stop the remaining curves.
func (a *Analyzer) AnalyzePin(ctx context.Context, c *ibis.Component, pin *ibis.Pin) int {
	m := pin.Model
	if m == nil || m.Type == ibis.NoModel {
		return 0
	}

	j, ok := a.jobFor(c, pin)
	if !ok {
		return 1
	}

	errs := a.runSeries(ctx, c, j)

	if m.Analyzed() {
		return errs
	}
	glog.Infof("analyzing model %s via pin %s", m.Name, pin.Name)

	if m.Type.NeedsPullup() {
		errs += a.runVIPair(ctx, j, spice.Pullup, spice.DisabledPullup)
	}
	if m.Type.NeedsPulldown() {
		errs += a.runVIPair(ctx, j, spice.Pulldown, spice.DisabledPulldown)
	}
	if m.Type.NeedsClamps() {
		errs += a.runClamp(ctx, j, spice.PowerClamp)
		errs += a.runClamp(ctx, j, spice.GndClamp)
	}
	if m.Type.NeedsTransient() {
		errs += a.runRamp(ctx, j, spice.RisingRamp)
		errs += a.runRamp(ctx, j, spice.FallingRamp)
		errs += a.runWaves(ctx, j, spice.RisingWave, m.RisingWaves)
		errs += a.runWaves(ctx, j, spice.FallingWave, m.FallingWaves)
	}

	m.MarkAnalyzed()
	if errs <= consts.CleanErrorTolerance {
		glog.Infof("model %s: analysis clean", m.Name)
	} else {
		glog.Warningf("model %s: analysis finished with %d errors", m.Name, errs)
	}
	return errs
}

// runSeries runs every still-pending Vds sweep of an attached series
// sub-model.
func (a *Analyzer) runSeries(ctx context.Context, c *ibis.Component, j *spice.Job) int {
	m := j.Model
	if !m.Series.Pending() {
		return 0
	}
	pin2 := seriesFarPin(c, j.Pin.Name)
	if pin2 == nil {
		glog.Errorf("component %s pin %s: no series pin mapping for model %s",
			c.Name, j.Pin.Name, m.Name)
		return 1
	}

	errs := 0
	sw := SetupVoltages(spice.SeriesVI, m)
	for m.Series.Pending() {
		idx := m.Series.NextVds
		sj := *j
		sj.Curve = spice.SeriesVI
		sj.Sweep = sw
		sj.Pin2Node = pin2.SpiceNode
		sj.Vds = m.Series.Vds[idx]
		sj.Index = idx

		tbl, e := spice.GenerateVI(ctx, a.Env, &sj)
		errs += e
		// A failed sweep still takes its table slot, so every later
		// table keeps lining up with its Vds value.
		m.Series.Tables = append(m.Series.Tables, SortVISeriesData(tbl, val(sw.Vcc.Typ)))
		m.Series.NextVds++
	}
	return errs
}

func seriesFarPin(c *ibis.Component, pinName string) *ibis.Pin {
	for _, spm := range c.SeriesPinMaps {
		if spm.Pin1 == pinName {
			return c.FindPin(spm.Pin2)
		}
		if spm.Pin2 == pinName {
			return c.FindPin(spm.Pin1)
		}
	}
	return nil
}

// runVIPair runs an enabled VI curve and, when the pin has an enable,
// the matching disabled curve, storing the leakage-subtracted raw table
// and its sorted final form on the model.
func (a *Analyzer) runVIPair(ctx context.Context, j *spice.Job, enabled, disabled spice.CurveType) int {
	m := j.Model
	sw := SetupVoltages(enabled, m)

	ej := *j
	ej.Curve = enabled
	ej.Sweep = sw
	tbl, errs := spice.GenerateVI(ctx, a.Env, &ej)

	if j.EnableNode != "" {
		dj := *j
		dj.Curve = disabled
		dj.Sweep = SetupVoltages(disabled, m)
		dtbl, e := spice.GenerateVI(ctx, a.Env, &dj)
		errs += e
		subtractDisabled(tbl, dtbl)
	}

	if enabled == spice.Pullup {
		m.PullupData = tbl
		m.Pullup = SortVIData(spice.Pullup, tbl, sw, m.DerateVI)
	} else {
		m.PulldownData = tbl
		m.Pulldown = SortVIData(spice.Pulldown, tbl, sw, m.DerateVI)
	}
	return errs
}

func (a *Analyzer) runClamp(ctx context.Context, j *spice.Job, ct spice.CurveType) int {
	m := j.Model
	sw := SetupVoltages(ct, m)

	cj := *j
	cj.Curve = ct
	cj.Sweep = sw
	tbl, errs := spice.GenerateVI(ctx, a.Env, &cj)

	if ct == spice.PowerClamp {
		m.PowerClampData = tbl
		m.PowerClamp = SortVIData(ct, tbl, sw, m.DerateVI)
	} else {
		m.GndClampData = tbl
		m.GndClamp = SortVIData(ct, tbl, sw, m.DerateVI)
	}
	return errs
}

// runRamp generates one edge's 20%-80% ramp and applies the ramp derate
// to the min and max corners in opposite directions: the slow corner
// gets slower, the fast corner faster.
func (a *Analyzer) runRamp(ctx context.Context, j *spice.Job, ct spice.CurveType) int {
	m := j.Model

	rj := *j
	rj.Curve = ct
	rj.Sweep = SetupVoltages(ct, m)
	dv, dt, errs := spice.GenerateRamp(ctx, a.Env, &rj)

	if pct := m.DerateRamp; !unit.IsNA(pct) && pct != 0 {
		dt.Min *= 1 + pct/100
		dt.Max *= 1 - pct/100
	}
	if ct == spice.RisingRamp {
		m.Ramp.DVRise = dv
		m.Ramp.DtRise = dt
	} else {
		m.Ramp.DVFall = dv
		m.Ramp.DtFall = dt
	}
	return errs
}

// runWaves generates the fixture waveforms for one edge, heaviest load
// first, capped at the IBIS table limit.
func (a *Analyzer) runWaves(ctx context.Context, j *spice.Job, ct spice.CurveType, waves []*ibis.Waveform) int {
	if len(waves) == 0 {
		return 0
	}
	sort.SliceStable(waves, func(i, k int) bool {
		return waves[i].RFixture > waves[k].RFixture
	})
	if len(waves) > consts.MaxWaveformTables {
		glog.Warningf("model %s: %d %s fixtures declared, keeping the first %d",
			j.Model.Name, len(waves), ct, consts.MaxWaveformTables)
		waves = waves[:consts.MaxWaveformTables]
	}

	errs := 0
	sw := SetupVoltages(ct, j.Model)
	for i, w := range waves {
		wj := *j
		wj.Curve = ct
		wj.Sweep = sw
		wj.Wave = w
		wj.Index = i
		tbl, e := spice.GenerateWave(ctx, a.Env, &wj)
		errs += e
		w.Table = tbl
	}
	return errs
}
