package ibis

import "spice2ibis/pkg/unit"

// TypMinMax is a process-corner triple. Each field is independently NA
// until something sets it; arithmetic keeps NA sticky.
type TypMinMax struct {
	Typ float64
	Min float64
	Max float64
}

// NewTMM returns a triple with all three corners unset.
func NewTMM() TypMinMax {
	return TypMinMax{Typ: unit.NA(), Min: unit.NA(), Max: unit.NA()}
}

func TMM(typ, min, max float64) TypMinMax {
	return TypMinMax{Typ: typ, Min: min, Max: max}
}

// Corner returns the value at a consts.Typ/Min/Max index.
func (t TypMinMax) Corner(i int) float64 {
	switch i {
	case 1:
		return t.Min
	case 2:
		return t.Max
	}
	return t.Typ
}

// SetCorner stores v at a corner index.
func (t *TypMinMax) SetCorner(i int, v float64) {
	switch i {
	case 1:
		t.Min = v
	case 2:
		t.Max = v
	default:
		t.Typ = v
	}
}

// AnySet reports whether at least one corner holds a value.
func (t TypMinMax) AnySet() bool {
	return !unit.IsNA(t.Typ) || !unit.IsNA(t.Min) || !unit.IsNA(t.Max)
}

// AllSet reports whether every corner holds a value.
func (t TypMinMax) AllSet() bool {
	return !unit.IsNA(t.Typ) && !unit.IsNA(t.Min) && !unit.IsNA(t.Max)
}

// CoalesceFrom fills any still-unset corner from src. Values already
// present are never overwritten, which is what makes the completion pass
// idempotent.
func (t *TypMinMax) CoalesceFrom(src TypMinMax) {
	if unit.IsNA(t.Typ) {
		t.Typ = src.Typ
	}
	if unit.IsNA(t.Min) {
		t.Min = src.Min
	}
	if unit.IsNA(t.Max) {
		t.Max = src.Max
	}
}

// Combine applies op corner-wise. A corner where either operand is NA
// stays NA; a partial computation never yields a finite number.
func Combine(a, b TypMinMax, op func(x, y float64) float64) TypMinMax {
	out := NewTMM()
	for i := 0; i < 3; i++ {
		x, y := a.Corner(i), b.Corner(i)
		if unit.IsNA(x) || unit.IsNA(y) {
			continue
		}
		out.SetCorner(i, op(x, y))
	}
	return out
}

// Sub is corner-wise a-b with NA propagation.
func Sub(a, b TypMinMax) TypMinMax {
	return Combine(a, b, func(x, y float64) float64 { return x - y })
}
