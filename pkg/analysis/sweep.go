// Package analysis orchestrates curve generation per pin and per
// component: it computes the sweep windows, dispatches simulation jobs,
// and normalizes the resulting tables into their final IBIS form.
package analysis

import (
	"math"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/spice"
	"spice2ibis/pkg/unit"
)

func val(v float64) float64 {
	if unit.IsNA(v) {
		return 0
	}
	return v
}

// effectiveRefs resolves the four supply references with their fallback
// chain: missing pullup/pulldown references fall back to the voltage
// range and ground, missing clamp references to the pullup/pulldown
// ones.
func effectiveRefs(m *ibis.Model) (vcc, vgnd, pc, gc ibis.TypMinMax) {
	vcc = m.PullupRef
	if !vcc.AnySet() {
		vcc = m.VoltageRange
	}
	vgnd = m.PulldownRef
	if !vgnd.AnySet() {
		vgnd = ibis.TMM(0, 0, 0)
	}
	pc = m.PowerClampRef
	if !pc.AnySet() {
		pc = vcc
	}
	gc = m.GndClampRef
	if !gc.AnySet() {
		gc = vgnd
	}
	return vcc, vgnd, pc, gc
}

// spreadAbove is how far the highest set corner sits above typ.
func spreadAbove(t ibis.TypMinMax) float64 {
	s := 0.0
	for i := 0; i < consts.NumCorners; i++ {
		v := t.Corner(i)
		if !unit.IsNA(v) && v-val(t.Typ) > s {
			s = v - val(t.Typ)
		}
	}
	return s
}

// spreadBelow is how far the lowest set corner sits below typ.
func spreadBelow(t ibis.TypMinMax) float64 {
	s := 0.0
	for i := 0; i < consts.NumCorners; i++ {
		v := t.Corner(i)
		if !unit.IsNA(v) && val(t.Typ)-v > s {
			s = val(t.Typ) - v
		}
	}
	return s
}

// SetupVoltages computes the DC window, step, and supply biases for one
// curve of one model. It is pure: same curve and model always yield the
// same sweep.
func SetupVoltages(ct spice.CurveType, m *ibis.Model) spice.Sweep {
	if m.Type.IsECL() {
		return setupECL(ct, m)
	}
	return setupCMOS(ct, m)
}

// setupECL follows the classic 5.2V ECL supply convention: the sweep
// window has a fixed width and only its center depends on the curve.
func setupECL(ct spice.CurveType, m *ibis.Model) spice.Sweep {
	vcc, _, pc, gc := effectiveRefs(m)

	gnd := ibis.NewTMM()
	switch {
	case m.PulldownRef.AnySet():
		gnd = m.PulldownRef
	case val(vcc.Typ) >= consts.ECLVccNomLow && val(vcc.Typ) <= consts.ECLVccNomHigh:
		// 5V-referenced ECL: outputs swing below a grounded VEE.
		gnd = ibis.TMM(0, 0, 0)
	default:
		for i := 0; i < consts.NumCorners; i++ {
			if v := vcc.Corner(i); !unit.IsNA(v) {
				gnd.SetCorner(i, v-consts.ECLSupply)
			}
		}
	}

	w := consts.ECLSweepWindow
	var start, span float64
	switch ct {
	case spice.PowerClamp:
		start = val(pc.Typ) - w/2
		span = w
	case spice.GndClamp:
		start = val(gc.Typ) - w
		span = val(pc.Typ) - start
	default:
		lo := val(vcc.Typ) - w/2
		hi := val(vcc.Typ) + w/2
		if ct == spice.Pullup || ct == spice.DisabledPullup {
			lo -= spreadBelow(vcc)
			hi += spreadAbove(vcc)
		}
		start = lo
		span = hi - lo
	}

	return spice.Sweep{
		Start: start,
		Span:  span,
		Step:  fitStep(span, w/50),
		Vcc:   vcc,
		Vgnd:  gnd,
	}
}

// setupCMOS derives the window from the supply references: clamp curves
// bracket the clamp diodes, output curves cover the pulldown-to-pullup
// swing plus a diode drop of margin on both ends.
func setupCMOS(ct spice.CurveType, m *ibis.Model) spice.Sweep {
	vcc, vgnd, pc, gc := effectiveRefs(m)

	refSpan := val(vcc.Typ) - val(vgnd.Typ)
	if m.Type.UsesClampSpan() {
		refSpan = val(pc.Typ) - val(gc.Typ)
	}
	lr := math.Min(consts.LinearRangeMax, math.Abs(refSpan))
	lr = math.Copysign(lr, refSpan)
	diode := math.Copysign(consts.DiodeDrop, refSpan)

	var start, span float64
	switch ct {
	case spice.GndClamp:
		start = val(gc.Typ) - lr
		span = val(pc.Typ) - start
	case spice.PowerClamp:
		start = val(pc.Typ) + lr
		span = val(gc.Typ) - start
	case spice.SeriesVI:
		start = val(vgnd.Typ)
		span = val(vcc.Typ) - start
	default:
		lo := val(vgnd.Typ) - diode
		hi := val(vgnd.Typ) + lr + diode
		if ct == spice.Pullup || ct == spice.DisabledPullup {
			lo -= spreadBelow(vcc)
			hi += spreadAbove(vcc)
		}
		start = lo
		span = hi - lo
	}

	return spice.Sweep{
		Start: start,
		Span:  span,
		Step:  fitStep(span, math.Abs(lr)/50),
		Vcc:   vcc,
		Vgnd:  vgnd,
	}
}

// fitStep signs the step toward the span and grows it until the implied
// point count fits an IBIS table and the step is coarse enough to be
// usable.
func fitStep(span, step float64) float64 {
	if step == 0 || math.IsNaN(step) {
		step = consts.MinSweepStep
	}
	step = math.Copysign(math.Abs(step), span)
	incr := math.Copysign(consts.StepIncrement, step)
	for span != 0 && !math.IsNaN(span) &&
		(math.Abs(span/step) >= consts.MaxTableSize || math.Abs(step) < consts.MinSweepStep) {
		step += incr
	}
	return step
}
