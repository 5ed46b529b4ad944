package spice

import (
	"fmt"

	"spice2ibis/pkg/ibis"
)

// CurveType tags one kind of simulation run.
type CurveType int

const (
	Pullup CurveType = iota
	DisabledPullup
	Pulldown
	DisabledPulldown
	PowerClamp
	GndClamp
	SeriesVI
	RisingRamp
	FallingRamp
	RisingWave
	FallingWave
)

func (c CurveType) String() string {
	switch c {
	case Pullup:
		return "pullup"
	case DisabledPullup:
		return "disabled pullup"
	case Pulldown:
		return "pulldown"
	case DisabledPulldown:
		return "disabled pulldown"
	case PowerClamp:
		return "power clamp"
	case GndClamp:
		return "gnd clamp"
	case SeriesVI:
		return "series VI"
	case RisingRamp:
		return "rising ramp"
	case FallingRamp:
		return "falling ramp"
	case RisingWave:
		return "rising waveform"
	case FallingWave:
		return "falling waveform"
	}
	return "unknown"
}

// IsTransient reports whether the curve runs a .TRAN analysis.
func (c CurveType) IsTransient() bool {
	switch c {
	case RisingRamp, FallingRamp, RisingWave, FallingWave:
		return true
	case Pullup, DisabledPullup, Pulldown, DisabledPulldown,
		PowerClamp, GndClamp, SeriesVI:
		return false
	}
	return false
}

// filePrefix is the deck/output filename prefix for a curve type. The
// switch is exhaustive on purpose: a new curve type must get a prefix
// before it can run.
func filePrefix(c CurveType) string {
	switch c {
	case Pullup:
		return "pu"
	case DisabledPullup:
		return "dpu"
	case Pulldown:
		return "pd"
	case DisabledPulldown:
		return "dpd"
	case PowerClamp:
		return "pc"
	case GndClamp:
		return "gc"
	case SeriesVI:
		return "sv"
	case RisingRamp:
		return "rr"
	case FallingRamp:
		return "fr"
	case RisingWave:
		return "rw"
	case FallingWave:
		return "fw"
	}
	panic(fmt.Sprintf("no file prefix for curve type %d", int(c)))
}

// cornerLetter distinguishes the typ/min/max variants of a deck.
func cornerLetter(corner int) string {
	switch corner {
	case 1:
		return "m"
	case 2:
		return "x"
	}
	return "t"
}

// FileBase derives the deterministic working-file base name for one run.
// idx separates multi-table curves (series Vds points, waveform fixtures).
func FileBase(c CurveType, corner int, pinName string, idx int) string {
	base := filePrefix(c) + cornerLetter(corner) + "_" + pinName
	if idx >= 0 {
		base = fmt.Sprintf("%s_%d", base, idx)
	}
	return base
}

// Sweep is the DC window and supply biases one curve runs with, computed
// by the voltage setup routine before deck synthesis.
type Sweep struct {
	Start float64
	Span  float64
	Step  float64

	Vcc  ibis.TypMinMax
	Vgnd ibis.TypMinMax
}

// Points returns the table size the window implies.
func (s Sweep) Points() int {
	if s.Step == 0 {
		return 0
	}
	n := int(s.Span/s.Step) + 1
	if n < 0 {
		n = -n
	}
	return n
}
