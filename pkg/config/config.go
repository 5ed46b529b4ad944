// Package config is the YAML front end: an alternative to the .s2i
// parser that decodes to the same in-memory document, so the rest of
// the pipeline cannot tell the two apart.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

// triple decodes a typ/min/max list. Fewer than three entries leave the
// trailing corners unset.
type triple []unit.Scalar

func (t triple) tmm() ibis.TypMinMax {
	out := ibis.NewTMM()
	for i, v := range t {
		if i >= 3 {
			break
		}
		out.SetCorner(i, float64(v))
	}
	return out
}

// params mirrors the scope-shared settings block. Every field is
// optional; absent fields stay unset so scope inheritance works the
// same as with the native parser.
type params struct {
	TempRange     triple `yaml:"temperature_range"`
	VoltageRange  triple `yaml:"voltage_range"`
	PullupRef     triple `yaml:"pullup_reference"`
	PulldownRef   triple `yaml:"pulldown_reference"`
	PowerClampRef triple `yaml:"power_clamp_reference"`
	GndClampRef   triple `yaml:"gnd_clamp_reference"`
	Vil           triple `yaml:"vil"`
	Vih           triple `yaml:"vih"`
	Tr            triple `yaml:"tr"`
	Tf            triple `yaml:"tf"`
	CComp         triple `yaml:"c_comp"`
	RPkg          triple `yaml:"r_pkg"`
	LPkg          triple `yaml:"l_pkg"`
	CPkg          triple `yaml:"c_pkg"`

	Rload      *unit.Scalar `yaml:"rload"`
	SimTime    *unit.Scalar `yaml:"sim_time"`
	ClampTol   *unit.Scalar `yaml:"clamp_tolerance"`
	DerateVI   *unit.Scalar `yaml:"derate_vi"`
	DerateRamp *unit.Scalar `yaml:"derate_ramp"`
}

func (p *params) apply(dst *ibis.Params) {
	setTMM := func(dst *ibis.TypMinMax, src triple) {
		if len(src) > 0 {
			*dst = src.tmm()
		}
	}
	setTMM(&dst.TempRange, p.TempRange)
	setTMM(&dst.VoltageRange, p.VoltageRange)
	setTMM(&dst.PullupRef, p.PullupRef)
	setTMM(&dst.PulldownRef, p.PulldownRef)
	setTMM(&dst.PowerClampRef, p.PowerClampRef)
	setTMM(&dst.GndClampRef, p.GndClampRef)
	setTMM(&dst.Vil, p.Vil)
	setTMM(&dst.Vih, p.Vih)
	setTMM(&dst.Tr, p.Tr)
	setTMM(&dst.Tf, p.Tf)
	setTMM(&dst.CComp, p.CComp)
	setTMM(&dst.RPkg, p.RPkg)
	setTMM(&dst.LPkg, p.LPkg)
	setTMM(&dst.CPkg, p.CPkg)

	setScalar := func(dst *float64, src *unit.Scalar) {
		if src != nil {
			*dst = float64(*src)
		}
	}
	setScalar(&dst.Rload, p.Rload)
	setScalar(&dst.SimTime, p.SimTime)
	setScalar(&dst.ClampTol, p.ClampTol)
	setScalar(&dst.DerateVI, p.DerateVI)
	setScalar(&dst.DerateRamp, p.DerateRamp)
}

type pin struct {
	Name      string       `yaml:"name"`
	Signal    string       `yaml:"signal"`
	Node      string       `yaml:"node"`
	Model     string       `yaml:"model"`
	RPin      *unit.Scalar `yaml:"r_pin"`
	LPin      *unit.Scalar `yaml:"l_pin"`
	CPin      *unit.Scalar `yaml:"c_pin"`
	InputPin  string       `yaml:"input_pin"`
	EnablePin string       `yaml:"enable_pin"`
}

type diffPin struct {
	Pin    string       `yaml:"pin"`
	InvPin string       `yaml:"inv_pin"`
	Vdiff  *unit.Scalar `yaml:"vdiff"`
	Tdelay triple       `yaml:"tdelay"`
}

type seriesPin struct {
	Pin1  string `yaml:"pin1"`
	Pin2  string `yaml:"pin2"`
	Model string `yaml:"model"`
	Group string `yaml:"group"`
}

type pinMap struct {
	Pin           string `yaml:"pin"`
	PullupRef     string `yaml:"pullup_ref"`
	PulldownRef   string `yaml:"pulldown_ref"`
	GndClampRef   string `yaml:"gnd_clamp_ref"`
	PowerClampRef string `yaml:"power_clamp_ref"`
}

type component struct {
	Name            string      `yaml:"name"`
	Manufacturer    string      `yaml:"manufacturer"`
	PackageModel    string      `yaml:"package_model"`
	SpiceFile       string      `yaml:"spice_file"`
	SeriesSpiceFile string      `yaml:"series_spice_file"`
	Params          params      `yaml:",inline"`
	Pins            []pin       `yaml:"pins"`
	DiffPins        []diffPin   `yaml:"diff_pins"`
	SeriesPins      []seriesPin `yaml:"series_pins"`
	PinMapping      []pinMap    `yaml:"pin_mapping"`
}

type waveform struct {
	RFixture    *unit.Scalar `yaml:"r_fixture"`
	VFixture    *unit.Scalar `yaml:"v_fixture"`
	VFixtureMin *unit.Scalar `yaml:"v_fixture_min"`
	VFixtureMax *unit.Scalar `yaml:"v_fixture_max"`
	LFixture    *unit.Scalar `yaml:"l_fixture"`
	CFixture    *unit.Scalar `yaml:"c_fixture"`
	RDut        *unit.Scalar `yaml:"r_dut"`
	LDut        *unit.Scalar `yaml:"l_dut"`
	CDut        *unit.Scalar `yaml:"c_dut"`
}

type series struct {
	Vds     []unit.Scalar `yaml:"vds"`
	On      bool          `yaml:"on"`
	Off     bool          `yaml:"off"`
	RSeries triple        `yaml:"r_series"`
}

type model struct {
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Polarity    string     `yaml:"polarity"`
	Enable      string     `yaml:"enable"`
	Params      params     `yaml:",inline"`
	Vinl        triple     `yaml:"vinl"`
	Vinh        triple     `yaml:"vinh"`
	Vmeas       triple     `yaml:"vmeas"`
	Cref        triple     `yaml:"cref"`
	Rref        triple     `yaml:"rref"`
	Vref        triple     `yaml:"vref"`
	ModelFile   []string   `yaml:"model_file"`
	ExtSpiceCmd string     `yaml:"ext_spice_cmd"`
	Rising      []waveform `yaml:"rising_waveforms"`
	Falling     []waveform `yaml:"falling_waveforms"`
	Series      *series    `yaml:"series_mosfet"`
}

type document struct {
	IbisVer      *unit.Scalar `yaml:"ibis_ver"`
	FileName     string       `yaml:"file_name"`
	FileRev      string       `yaml:"file_rev"`
	Date         string       `yaml:"date"`
	Source       string       `yaml:"source"`
	Notes        string       `yaml:"notes"`
	Disclaimer   string       `yaml:"disclaimer"`
	Copyright    string       `yaml:"copyright"`
	SpiceType    string       `yaml:"spice_type"`
	SpiceCommand string       `yaml:"spice_command"`
	Iterate      bool         `yaml:"iterate"`
	Cleanup      bool         `yaml:"cleanup"`
	Params       params       `yaml:",inline"`
	Components   []component  `yaml:"components"`
	Models       []model      `yaml:"models"`
}

// Load decodes a YAML config file to the document form the .s2i parser
// produces.
func Load(path string) (*ibis.TOP, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open config %s", path)
	}
	defer f.Close()
	top, err := Decode(f)
	return top, errors.Wrapf(err, "config %s", path)
}

// Decode decodes one YAML document.
func Decode(r io.Reader) (*ibis.TOP, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "yaml decode")
	}
	return doc.build()
}

func (d *document) build() (*ibis.TOP, error) {
	top := ibis.NewTOP()
	g := top.Global
	if d.IbisVer != nil {
		g.IbisVer = float64(*d.IbisVer)
	}
	g.FileName = d.FileName
	g.FileRev = d.FileRev
	g.Date = d.Date
	g.Source = d.Source
	g.Notes = d.Notes
	g.Disclaimer = d.Disclaimer
	g.Copyright = d.Copyright
	st, ok := ibis.ParseSpiceType(d.SpiceType)
	if !ok {
		return nil, errors.Errorf("unknown spice type %q", d.SpiceType)
	}
	g.SpiceType = st
	g.SpiceCommand = d.SpiceCommand
	g.Iterate = d.Iterate
	g.Cleanup = d.Cleanup
	d.Params.apply(&g.Params)

	for i := range d.Components {
		c, err := d.Components[i].build()
		if err != nil {
			return nil, err
		}
		top.Components = append(top.Components, c)
	}
	for i := range d.Models {
		m, err := d.Models[i].build()
		if err != nil {
			return nil, err
		}
		top.Models = append(top.Models, m)
	}
	return top, nil
}

func (cy *component) build() (*ibis.Component, error) {
	c := ibis.NewComponent(cy.Name)
	c.Manufacturer = cy.Manufacturer
	c.PackageModel = cy.PackageModel
	c.SpiceFile = cy.SpiceFile
	c.SeriesSpiceFile = cy.SeriesSpiceFile
	cy.Params.apply(&c.Params)

	for _, py := range cy.Pins {
		p := ibis.NewPin(py.Name)
		p.SignalName = py.Signal
		p.SpiceNode = py.Node
		p.ModelName = py.Model
		if py.RPin != nil {
			p.RPin = float64(*py.RPin)
		}
		if py.LPin != nil {
			p.LPin = float64(*py.LPin)
		}
		if py.CPin != nil {
			p.CPin = float64(*py.CPin)
		}
		p.InputPin = py.InputPin
		p.EnablePin = py.EnablePin
		c.Pins = append(c.Pins, p)
	}
	for _, dy := range cy.DiffPins {
		d := &ibis.DiffPin{Pin: dy.Pin, InvPin: dy.InvPin, Vdiff: unit.NA(), Tdelay: dy.Tdelay.tmm()}
		if dy.Vdiff != nil {
			d.Vdiff = float64(*dy.Vdiff)
		}
		c.DiffPins = append(c.DiffPins, d)
	}
	for _, sy := range cy.SeriesPins {
		c.SeriesPinMaps = append(c.SeriesPinMaps, &ibis.SeriesPinMap{
			Pin1: sy.Pin1, Pin2: sy.Pin2, ModelName: sy.Model, Group: sy.Group,
		})
	}
	for _, my := range cy.PinMapping {
		c.PinMaps = append(c.PinMaps, &ibis.PinMap{
			Pin:           my.Pin,
			PullupRef:     my.PullupRef,
			PulldownRef:   my.PulldownRef,
			GndClampRef:   my.GndClampRef,
			PowerClampRef: my.PowerClampRef,
		})
	}
	c.HasPinMapping = len(c.PinMaps) > 0
	return c, nil
}

func (my *model) build() (*ibis.Model, error) {
	m := ibis.NewModel(my.Name)
	mt, err := ibis.ParseModelType(my.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", my.Name)
	}
	m.Type = mt
	m.Polarity = my.Polarity
	m.Enable = my.Enable
	my.Params.apply(&m.Params)
	if len(my.Vinl) > 0 {
		m.Vinl = my.Vinl.tmm()
	}
	if len(my.Vinh) > 0 {
		m.Vinh = my.Vinh.tmm()
	}
	if len(my.Vmeas) > 0 {
		m.Vmeas = my.Vmeas.tmm()
	}
	if len(my.Cref) > 0 {
		m.Cref = my.Cref.tmm()
	}
	if len(my.Rref) > 0 {
		m.Rref = my.Rref.tmm()
	}
	if len(my.Vref) > 0 {
		m.Vref = my.Vref.tmm()
	}
	for i, mf := range my.ModelFile {
		if i >= len(m.ModelFile) {
			break
		}
		m.ModelFile[i] = mf
	}
	m.ExtSpiceCmd = my.ExtSpiceCmd
	for _, wy := range my.Rising {
		m.RisingWaves = append(m.RisingWaves, wy.build())
	}
	for _, wy := range my.Falling {
		m.FallingWaves = append(m.FallingWaves, wy.build())
	}
	if my.Series != nil {
		s := &ibis.SeriesModel{On: my.Series.On, Off: my.Series.Off, RSeries: my.Series.RSeries.tmm()}
		for _, v := range my.Series.Vds {
			s.Vds = append(s.Vds, float64(v))
		}
		m.Series = s
	}
	return m, nil
}

func (wy *waveform) build() *ibis.Waveform {
	w := &ibis.Waveform{
		RFixture:    scalarOrNA(wy.RFixture),
		VFixture:    scalarOrNA(wy.VFixture),
		VFixtureMin: scalarOrNA(wy.VFixtureMin),
		VFixtureMax: scalarOrNA(wy.VFixtureMax),
		LFixture:    scalarOrNA(wy.LFixture),
		CFixture:    scalarOrNA(wy.CFixture),
		RDut:        scalarOrNA(wy.RDut),
		LDut:        scalarOrNA(wy.LDut),
		CDut:        scalarOrNA(wy.CDut),
	}
	return w
}

func scalarOrNA(s *unit.Scalar) float64 {
	if s == nil {
		return unit.NA()
	}
	return float64(*s)
}
