package consts

import "time"

// IBIS table limits.
const (
	MaxTableSize      = 100 // IBIS caps VI tables at 100 points
	WavePointsDefault = 100 // transient waveform bins
	MaxSeriesTables   = 100 // one VI table per [Vds] point
	MaxWaveformTables = 9   // positional waveform params allow 9 fixtures
)

// Sweep construction.
const (
	DiodeDrop      = 0.7 // clamp diode forward drop (V)
	ECLSupply      = 5.2 // classic ECL VCC-VEE span (V)
	ECLSweepWindow = 2.2 // fixed ECL sweep width (V)
	ECLVccNomLow   = 4.5 // VCC typ range treated as 5V-referenced ECL
	ECLVccNomHigh  = 5.5
	LinearRangeMax = 5.0  // CMOS sweeps never span more than this (V)
	MinSweepStep   = 0.01 // smallest usable step (V)
	StepIncrement  = 0.01 // added to the step until the table fits (V)
)

// Simulation defaults.
const (
	SimTimeDefault = 10e-9 // transient length when nothing configures one (s)
	RloadDefault   = 50.0  // ohm
	TempDefault    = 27.0  // C
)

// Execution policy.
const (
	MaxSpiceRetries     = 3 // sweep windows tried before a corner fails
	CleanErrorTolerance = 1 // per-pin error count still reported as clean
	RunTimeout          = 60 * time.Second
)

// Corner indexes into typ/min/max triples.
const (
	Typ = iota
	Min
	Max
	NumCorners
)
