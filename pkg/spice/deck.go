package spice

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

// Source element names injected into every deck. Prefixed so they cannot
// collide with anything in the DUT netlist.
const (
	sweepSource  = "VOUTS2I"
	vccSource    = "VCCS2I"
	gndSource    = "VGNDS2I"
	inputSource  = "VINS2I"
	enableSource = "VENS2I"
	vdsSource    = "VDSS2I"
	fixSource    = "VFIXS2I"
	fixResistor  = "RFIXS2I"
	loadResistor = "RLOADS2I"
	fixNode      = "NFIXS2I"
)

// Job describes one curve generation: the curve kind, the circuit nodes
// it touches, and the sweep window the voltage setup computed.
type Job struct {
	Curve CurveType
	Comp  *ibis.Component
	Model *ibis.Model
	Pin   *ibis.Pin

	Sweep Sweep

	PowerNode  string
	GndNode    string
	InputNode  string
	EnableNode string

	// Series runs: the far-side pin node and the Vds bias for this table.
	Pin2Node string
	Vds      float64

	// Waveform runs: the fixture being driven.
	Wave *ibis.Waveform

	// Table index for series/waveform runs, -1 otherwise.
	Index int
}

// Base returns the working-file base name for one corner of this job.
func (j *Job) Base(corner int) string {
	return FileBase(j.Curve, corner, j.Pin.Name, j.Index)
}

// BuildDeck assembles the netlist text for one corner of a job, with the
// given sweep window (which differs from the job's own only on retries).
func BuildDeck(d Dialect, j *Job, corner int, start, span, step float64) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "* %s deck for pin %s (%s corner)\n", j.Curve, j.Pin.Name, cornerName(corner))
	if lang := d.LangLine(); lang != "" {
		b.WriteString(lang + "\n")
	}

	spiceFile := j.Comp.SpiceFile
	if j.Curve == SeriesVI && j.Comp.SeriesSpiceFile != "" {
		spiceFile = j.Comp.SeriesSpiceFile
	}
	if err := appendNetlist(&b, spiceFile); err != nil {
		return "", err
	}
	if mf := j.Model.ModelFileFor(corner); mf != "" {
		if err := appendVerbatim(&b, mf); err != nil {
			return "", err
		}
	}
	if j.Model.ExtSpiceCmd != "" {
		if err := appendVerbatim(&b, j.Model.ExtSpiceCmd); err != nil {
			return "", err
		}
	}

	appendLoad(&b, j, corner)
	appendBias(&b, j, corner)
	appendStimulus(&b, j, corner)

	temp := j.Model.TempRange.Corner(corner)
	if unit.IsNA(temp) {
		temp = consts.TempDefault
	}
	fmt.Fprintf(&b, ".TEMP %g\n", temp)

	if d.Name() == "hspice" {
		b.WriteString(".OPTIONS NOMOD POST=0 INGOLD=2\n")
	}

	appendAnalysis(&b, j, start, span, step)

	if d.WantsEnd() {
		b.WriteString(".END\n")
	}
	return b.String(), nil
}

func cornerName(corner int) string {
	switch corner {
	case 1:
		return "min"
	case 2:
		return "max"
	}
	return "typ"
}

// appendNetlist copies the DUT netlist, dropping comment lines and any
// .end so the fragments that follow stay inside the deck.
func appendNetlist(b *strings.Builder, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read spice file %s", path)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "*") {
			continue
		}
		if strings.EqualFold(fields[0], ".end") {
			continue
		}
		b.WriteString(strings.TrimRight(line, " \t\r") + "\n")
	}
	return nil
}

func appendVerbatim(b *strings.Builder, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read include file %s", path)
	}
	b.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	return nil
}

// appendLoad emits the output-side network: the swept source for DC
// curves, the fixture or load network for transients.
func appendLoad(b *strings.Builder, j *Job, corner int) {
	node := j.Pin.SpiceNode
	switch j.Curve {
	case Pullup, DisabledPullup, Pulldown, DisabledPulldown, PowerClamp, GndClamp:
		fmt.Fprintf(b, "%s %s 0 DC 0\n", sweepSource, node)

	case SeriesVI:
		fmt.Fprintf(b, "%s %s 0 DC 0\n", sweepSource, node)
		fmt.Fprintf(b, "%s %s 0 DC %g\n", vdsSource, j.Pin2Node, j.Vds)

	case RisingRamp, FallingRamp:
		rload := j.Model.Rload
		if unit.IsNA(rload) || rload <= 0 {
			rload = consts.RloadDefault
		}
		// Rising edges pull the load from ground, falling edges from VCC,
		// so the ramp exercises the switching transistor.
		ref := "0"
		if j.Curve == FallingRamp {
			ref = j.PowerNode
		}
		fmt.Fprintf(b, "%s %s %s %g\n", loadResistor, node, ref, rload)

	case RisingWave, FallingWave:
		w := j.Wave
		vfix := waveFixtureV(w, corner)
		fmt.Fprintf(b, "%s %s 0 DC %g\n", fixSource, fixNode, vfix)
		rfix := w.RFixture
		if unit.IsNA(rfix) || rfix <= 0 {
			rfix = consts.RloadDefault
		}
		fmt.Fprintf(b, "%s %s %s %g\n", fixResistor, node, fixNode, rfix)
		if !unit.IsNA(w.LFixture) && w.LFixture > 0 {
			fmt.Fprintf(b, "LFIXS2I %s %s %g\n", node, fixNode, w.LFixture)
		}
		if !unit.IsNA(w.CFixture) && w.CFixture > 0 {
			fmt.Fprintf(b, "CFIXS2I %s 0 %g\n", node, w.CFixture)
		}
	}
}

func waveFixtureV(w *ibis.Waveform, corner int) float64 {
	v := w.VFixture
	switch corner {
	case 1:
		if !unit.IsNA(w.VFixtureMin) {
			v = w.VFixtureMin
		}
	case 2:
		if !unit.IsNA(w.VFixtureMax) {
			v = w.VFixtureMax
		}
	}
	if unit.IsNA(v) {
		return 0
	}
	return v
}

// appendBias emits the supply rails for the corner.
func appendBias(b *strings.Builder, j *Job, corner int) {
	vcc := j.Sweep.Vcc.Corner(corner)
	if unit.IsNA(vcc) {
		vcc = j.Sweep.Vcc.Typ
	}
	vgnd := j.Sweep.Vgnd.Corner(corner)
	if unit.IsNA(vgnd) {
		vgnd = j.Sweep.Vgnd.Typ
	}
	if unit.IsNA(vgnd) {
		vgnd = 0
	}
	if j.PowerNode != "" && !unit.IsNA(vcc) {
		fmt.Fprintf(b, "%s %s 0 DC %g\n", vccSource, j.PowerNode, vcc)
	}
	if j.GndNode != "" && j.GndNode != "0" {
		fmt.Fprintf(b, "%s %s 0 DC %g\n", gndSource, j.GndNode, vgnd)
	}
}

// appendStimulus emits the input and enable drive for the corner: DC
// levels for VI curves, a PULSE edge for transients.
func appendStimulus(b *strings.Builder, j *Job, corner int) {
	vil := levelOr(j.Model.Vil, corner, 0)
	vih := levelOr(j.Model.Vih, corner, j.Sweep.Vcc.Corner(corner))
	if j.Model.Polarity != "" && strings.EqualFold(j.Model.Polarity, "Inverting") {
		vil, vih = vih, vil
	}

	if j.InputNode != "" {
		switch j.Curve {
		case Pullup, DisabledPullup:
			fmt.Fprintf(b, "%s %s 0 DC %g\n", inputSource, j.InputNode, vih)
		case Pulldown, DisabledPulldown, PowerClamp, GndClamp, SeriesVI:
			fmt.Fprintf(b, "%s %s 0 DC %g\n", inputSource, j.InputNode, vil)
		case RisingRamp, RisingWave:
			writePulse(b, j, corner, vil, vih)
		case FallingRamp, FallingWave:
			writePulse(b, j, corner, vih, vil)
		}
	}

	if j.EnableNode != "" {
		en, dis := enableLevels(j.Model, vil, vih)
		level := en
		switch j.Curve {
		case DisabledPullup, DisabledPulldown, PowerClamp, GndClamp:
			level = dis
		case Pullup, Pulldown, SeriesVI, RisingRamp, FallingRamp, RisingWave, FallingWave:
		}
		fmt.Fprintf(b, "%s %s 0 DC %g\n", enableSource, j.EnableNode, level)
	}
}

func enableLevels(m *ibis.Model, vil, vih float64) (enabled, disabled float64) {
	if strings.EqualFold(m.Enable, "Active-Low") {
		return vil, vih
	}
	return vih, vil
}

func writePulse(b *strings.Builder, j *Job, corner int, v1, v2 float64) {
	simTime := j.Model.SimTime
	tr := levelOr(j.Model.Tr, corner, 1e-9)
	tf := levelOr(j.Model.Tf, corner, 1e-9)
	delay := simTime / 10
	fmt.Fprintf(b, "%s %s 0 PULSE(%g %g %g %g %g %g %g)\n",
		inputSource, j.InputNode, v1, v2, delay, tr, tf, simTime, 2*simTime)
}

func levelOr(t ibis.TypMinMax, corner int, def float64) float64 {
	v := t.Corner(corner)
	if unit.IsNA(v) {
		v = t.Typ
	}
	if unit.IsNA(v) {
		return def
	}
	return v
}

// appendAnalysis emits the sweep or transient directive plus its print
// statement.
func appendAnalysis(b *strings.Builder, j *Job, start, span, step float64) {
	if j.Curve.IsTransient() {
		simTime := j.Model.SimTime
		tstep := simTime / float64(consts.WavePointsDefault*5)
		fmt.Fprintf(b, ".TRAN %g %g\n", tstep, simTime)
		fmt.Fprintf(b, ".PRINT TRAN V(%s)\n", j.Pin.SpiceNode)
		return
	}
	stop := start + span
	step = clampStep(span, step)
	fmt.Fprintf(b, ".DC %s %g %g %g\n", sweepSource, start, stop, step)
	fmt.Fprintf(b, ".PRINT DC I(%s)\n", sweepSource)
}

// clampStep re-signs the step toward the span and widens it until the
// implied point count fits in an IBIS table.
func clampStep(span, step float64) float64 {
	if step == 0 {
		step = consts.MinSweepStep
	}
	step = math.Copysign(math.Abs(step), span)
	incr := math.Copysign(consts.StepIncrement, step)
	for span != 0 && (math.Abs(span/step) >= consts.MaxTableSize || math.Abs(step) < consts.MinSweepStep) {
		step += incr
	}
	return step
}
