package ibis

import (
	"spice2ibis/internal/consts"
	"spice2ibis/pkg/unit"
)

// Params are the scope-aware simulation settings. The same block lives at
// global, component and model scope; the completion pass copies values down
// one level at a time, filling only what is still unset.
type Params struct {
	TempRange     TypMinMax
	VoltageRange  TypMinMax
	PullupRef     TypMinMax
	PulldownRef   TypMinMax
	PowerClampRef TypMinMax
	GndClampRef   TypMinMax
	Vil           TypMinMax
	Vih           TypMinMax
	Tr            TypMinMax
	Tf            TypMinMax
	CComp         TypMinMax

	RPkg TypMinMax
	LPkg TypMinMax
	CPkg TypMinMax

	Rload    float64
	SimTime  float64
	ClampTol float64

	DerateVI   float64 // percent
	DerateRamp float64 // percent
}

func NewParams() Params {
	return Params{
		TempRange:     NewTMM(),
		VoltageRange:  NewTMM(),
		PullupRef:     NewTMM(),
		PulldownRef:   NewTMM(),
		PowerClampRef: NewTMM(),
		GndClampRef:   NewTMM(),
		Vil:           NewTMM(),
		Vih:           NewTMM(),
		Tr:            NewTMM(),
		Tf:            NewTMM(),
		CComp:         NewTMM(),
		RPkg:          NewTMM(),
		LPkg:          NewTMM(),
		CPkg:          NewTMM(),
		Rload:         unit.NA(),
		SimTime:       unit.NA(),
		ClampTol:      unit.NA(),
		DerateVI:      unit.NA(),
		DerateRamp:    unit.NA(),
	}
}

// CoalesceFrom fills still-unset fields from src, one scope level up.
func (p *Params) CoalesceFrom(src *Params) {
	p.TempRange.CoalesceFrom(src.TempRange)
	p.VoltageRange.CoalesceFrom(src.VoltageRange)
	p.PullupRef.CoalesceFrom(src.PullupRef)
	p.PulldownRef.CoalesceFrom(src.PulldownRef)
	p.PowerClampRef.CoalesceFrom(src.PowerClampRef)
	p.GndClampRef.CoalesceFrom(src.GndClampRef)
	p.Vil.CoalesceFrom(src.Vil)
	p.Vih.CoalesceFrom(src.Vih)
	p.Tr.CoalesceFrom(src.Tr)
	p.Tf.CoalesceFrom(src.Tf)
	p.CComp.CoalesceFrom(src.CComp)
	p.RPkg.CoalesceFrom(src.RPkg)
	p.LPkg.CoalesceFrom(src.LPkg)
	p.CPkg.CoalesceFrom(src.CPkg)
	if unit.IsNA(p.ClampTol) {
		p.ClampTol = src.ClampTol
	}
	if unit.IsNA(p.DerateVI) {
		p.DerateVI = src.DerateVI
	}
	if unit.IsNA(p.DerateRamp) {
		p.DerateRamp = src.DerateRamp
	}
	// Rload and SimTime have their own rules in the completion pass.
}

// SeriesModel is the pending/attached record built from the
// [Series MOSFET] keyword family. Vds sweeps still waiting to run keep
// re-entering analysis even after the owning model is otherwise done.
type SeriesModel struct {
	Vds     []float64
	On      bool
	Off     bool
	RSeries TypMinMax

	Tables  []*VITable // one sorted table per completed Vds sweep
	NextVds int        // index of the next pending sweep
}

// Pending reports whether at least one Vds sweep has not run yet.
func (s *SeriesModel) Pending() bool {
	if s == nil {
		return false
	}
	return s.NextVds < len(s.Vds) && s.NextVds < consts.MaxSeriesTables
}

// Model is one buffer description: configuration overrides plus the
// simulation outputs the analysis phase fills in.
type Model struct {
	Name     string
	Type     ModelType
	Polarity string
	Enable   string

	Params

	Vinl  TypMinMax
	Vinh  TypMinMax
	Vmeas TypMinMax
	Cref  TypMinMax
	Rref  TypMinMax
	Vref  TypMinMax

	Rgnd   TypMinMax
	Rpower TypMinMax
	Rac    TypMinMax
	Cac    TypMinMax

	// Per-corner SPICE model file variants; min/max fall back to typ.
	ModelFile   [consts.NumCorners]string
	ExtSpiceCmd string

	// Raw sweep output.
	PullupData     *VITable
	PulldownData   *VITable
	PowerClampData *VITable
	GndClampData   *VITable

	// Final, sorted IBIS form.
	Pullup     *VITable
	Pulldown   *VITable
	PowerClamp *VITable
	GndClamp   *VITable

	Ramp         Ramp
	RisingWaves  []*Waveform
	FallingWaves []*Waveform

	Series *SeriesModel

	analyzed int
}

func NewModel(name string) *Model {
	return &Model{
		Name:   name,
		Params: NewParams(),
		Vinl:   NewTMM(),
		Vinh:   NewTMM(),
		Vmeas:  NewTMM(),
		Cref:   NewTMM(),
		Rref:   NewTMM(),
		Vref:   NewTMM(),
		Rgnd:   NewTMM(),
		Rpower: NewTMM(),
		Rac:    NewTMM(),
		Cac:    NewTMM(),
		Ramp:   NewRamp(),
	}
}

// Analyzed reports whether the full analysis sequence has completed at
// least once for this model.
func (m *Model) Analyzed() bool { return m.analyzed > 0 }

// MarkAnalyzed records one completed analysis pass.
func (m *Model) MarkAnalyzed() { m.analyzed++ }

// ModelFileFor returns the corner's model file, falling back to typ.
func (m *Model) ModelFileFor(corner int) string {
	if corner >= 0 && corner < consts.NumCorners && m.ModelFile[corner] != "" {
		return m.ModelFile[corner]
	}
	return m.ModelFile[consts.Typ]
}

// HasWaveforms reports whether any waveform fixture was declared. Models
// with explicit fixtures are assumed to define their own load, so the
// completion pass skips the Rload copy-down for them.
func (m *Model) HasWaveforms() bool {
	return len(m.RisingWaves) > 0 || len(m.FallingWaves) > 0
}
