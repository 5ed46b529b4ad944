// Package s2iutil is the post-parse completion pass: it pushes defaults
// down the global -> component -> model scope chain, links pins to models,
// and validates cross references. It is idempotent and must run before
// analysis.
package s2iutil

import (
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

// CompleteDataStructures runs the whole pass. The only fatal condition is
// a differential pair referencing a pin that does not exist; everything
// else is logged and the document is returned usable.
func CompleteDataStructures(top *ibis.TOP) error {
	copyGlobalDataToModels(top)
	linkPinsToModels(top)
	propagatePinParasitics(top)
	return validatePinLinks(top)
}

// copyGlobalDataToModels fills still-unset model parameters from the
// global block and derives the voltage range from the supply references
// when nothing set it explicitly.
func copyGlobalDataToModels(top *ibis.TOP) {
	g := top.Global
	for _, m := range top.Models {
		m.Params.CoalesceFrom(&g.Params)

		if !m.VoltageRange.AnySet() && m.PullupRef.AnySet() && m.PulldownRef.AnySet() {
			m.VoltageRange = ibis.Sub(m.PullupRef, m.PulldownRef)
		}

		// Models that declare waveform fixtures carry their own load.
		if unit.IsNA(m.Rload) && !m.HasWaveforms() {
			m.Rload = g.Rload
		}

		if unit.IsNA(m.SimTime) || m.SimTime <= 0 {
			if !unit.IsNA(g.SimTime) && g.SimTime > 0 {
				m.SimTime = g.SimTime
			} else {
				m.SimTime = consts.SimTimeDefault
			}
		}
	}
}

// linkPinsToModels resolves each pin's model by case-insensitive name and
// then applies component-level overrides to every model the component
// actually uses.
func linkPinsToModels(top *ibis.TOP) {
	for _, c := range top.Components {
		used := map[*ibis.Model]bool{}
		for _, p := range c.Pins {
			if ibis.IsReservedModelName(p.ModelName) {
				continue
			}
			m := top.FindModel(p.ModelName)
			if m == nil {
				glog.Errorf("component %s pin %s: model %q not found", c.Name, p.Name, p.ModelName)
				continue
			}
			p.Model = m
			used[m] = true
		}
		for m := range used {
			m.Params.CoalesceFrom(&c.Params)
			if unit.IsNA(m.Rload) && !m.HasWaveforms() {
				m.Rload = c.Rload
			}
		}
	}
}

// propagatePinParasitics seeds unused per-pin R/L/C from the component
// package parasitics, falling back to the global ones.
func propagatePinParasitics(top *ibis.TOP) {
	g := top.Global
	for _, c := range top.Components {
		for _, p := range c.Pins {
			p.RPin = seedRLC(p.RPin, c.RPkg, g.RPkg)
			p.LPin = seedRLC(p.LPin, c.LPkg, g.LPkg)
			p.CPin = seedRLC(p.CPin, c.CPkg, g.CPkg)
		}
	}
}

func seedRLC(cur float64, comp, global ibis.TypMinMax) float64 {
	if cur != ibis.UnusedRLC && !math.IsNaN(cur) {
		return cur
	}
	if cur == ibis.UnusedRLC {
		if !unit.IsNA(comp.Typ) {
			return comp.Typ
		}
		if !unit.IsNA(global.Typ) {
			return global.Typ
		}
	}
	return cur
}

// validatePinLinks reports broken cross references. Unresolvable models
// and input/enable pins are logged only; a differential pair naming a
// missing pin is fatal because nothing downstream could detect the
// resulting corruption.
func validatePinLinks(top *ibis.TOP) error {
	for _, c := range top.Components {
		for _, p := range c.Pins {
			if p.Model == nil && !ibis.IsReservedModelName(p.ModelName) {
				glog.Errorf("component %s pin %s: unresolved model %q", c.Name, p.Name, p.ModelName)
			}
			if p.InputPin != "" && c.FindPin(p.InputPin) == nil {
				glog.Errorf("component %s pin %s: input pin %q not in pin list", c.Name, p.Name, p.InputPin)
			}
			if p.EnablePin != "" && c.FindPin(p.EnablePin) == nil {
				glog.Errorf("component %s pin %s: enable pin %q not in pin list", c.Name, p.Name, p.EnablePin)
			}
		}
		for _, dp := range c.DiffPins {
			if c.FindPin(dp.InvPin) == nil {
				return errors.Errorf("component %s: differential pair for pin %s references missing pin %q",
					c.Name, dp.Pin, dp.InvPin)
			}
		}
	}
	return nil
}
