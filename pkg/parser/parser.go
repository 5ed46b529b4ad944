// Package parser reads the .s2i configuration dialect: bracketed keyword
// sections, |-comments, +-continuation lines, [Include] inlining, and
// scope-aware keyword storage (open model, else open component, else the
// global block). Malformed content is logged and skipped; only a missing
// file aborts the parse.
package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

type parser struct {
	top  *ibis.TOP
	comp *ibis.Component
	mdl  *ibis.Model

	// Series keywords may arrive before or after the [Model Type] that
	// makes them meaningful, so the record stays pending per model.
	series *ibis.SeriesModel

	// Current row-consuming section and the pin a "->" row refers to.
	section string
	lastPin *ibis.Pin
}

// Parse reads path and returns the populated document. The returned error
// is non-nil only for unreadable files; content problems are logged.
func Parse(path string) (*ibis.TOP, error) {
	lines, err := loadLines(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	p := &parser{top: ibis.NewTOP()}
	for _, line := range mergeContinuations(lines) {
		p.handleLine(line)
	}
	p.closeModel()
	p.closeComponent()
	return p.top, nil
}

// loadLines reads a file, strips |-comments, and recursively inlines
// [Include] directives relative to the including file. A path seen before
// is skipped with a warning rather than looping.
func loadLines(path string, visited map[string]bool) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err == nil {
		if visited[abs] {
			glog.Warningf("skipping already included file %s", path)
			return nil, nil
		}
		visited[abs] = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %s", path)
	}

	var out []string
	for _, raw := range strings.Split(string(data), "\n") {
		line := raw
		if i := strings.Index(line, "|"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if kw, args, ok := splitKeyword(line); ok && kw == "include" {
			inc := strings.TrimSpace(args)
			if inc == "" {
				glog.Warningf("[Include] with no path, skipped")
				continue
			}
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(path), inc)
			}
			sub, err := loadLines(inc, visited)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// mergeContinuations joins +-prefixed lines onto the previous logical
// line with a single space.
func mergeContinuations(lines []string) []string {
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "+") && len(out) > 0 {
			out[len(out)-1] += " " + strings.TrimSpace(trimmed[1:])
			continue
		}
		out = append(out, line)
	}
	return out
}

// splitKeyword recognizes "[Some Keyword] args" lines. The keyword is
// normalized to lower case with single spaces for dispatch.
func splitKeyword(line string) (kw, args string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[") {
		return "", "", false
	}
	end := strings.Index(trimmed, "]")
	if end < 0 {
		return "", "", false
	}
	kw = strings.ToLower(strings.Join(strings.Fields(trimmed[1:end]), " "))
	args = strings.TrimSpace(trimmed[end+1:])
	return kw, args, true
}

func (p *parser) handleLine(line string) {
	if kw, args, ok := splitKeyword(line); ok {
		p.handleKeyword(kw, args)
		return
	}
	p.handleRow(line)
}

// scope returns the parameter block the current scope writes into.
func (p *parser) scope() *ibis.Params {
	if p.mdl != nil {
		return &p.mdl.Params
	}
	if p.comp != nil {
		return &p.comp.Params
	}
	return &p.top.Global.Params
}

func (p *parser) closeModel() {
	if p.mdl == nil {
		return
	}
	p.attachSeries()
	p.top.Models = append(p.top.Models, p.mdl)
	p.mdl = nil
	p.series = nil
}

func (p *parser) closeComponent() {
	if p.comp == nil {
		return
	}
	p.top.Components = append(p.top.Components, p.comp)
	p.comp = nil
	p.lastPin = nil
}

// attachSeries hands the pending series record to the model once its type
// turns out to be Series or Series_switch.
func (p *parser) attachSeries() {
	if p.mdl == nil || p.series == nil {
		return
	}
	if p.mdl.Type == ibis.Series || p.mdl.Type == ibis.SeriesSwitch {
		p.mdl.Series = p.series
		p.series = nil
	}
}

func (p *parser) seriesRecord() *ibis.SeriesModel {
	if p.mdl != nil && p.mdl.Series != nil {
		return p.mdl.Series
	}
	if p.series == nil {
		p.series = &ibis.SeriesModel{RSeries: ibis.NewTMM()}
	}
	return p.series
}

// parseTMM reads up to three corner values; bad tokens are warned about
// and left unset.
func parseTMM(kw string, fields []string) ibis.TypMinMax {
	t := ibis.NewTMM()
	for i, f := range fields {
		if i >= 3 {
			glog.Warningf("[%s]: extra token %q ignored", kw, f)
			break
		}
		v, err := unit.Parse(f)
		if err != nil {
			glog.Warningf("[%s]: %v", kw, err)
			continue
		}
		t.SetCorner(i, v)
	}
	return t
}

func parseScalar(kw, tok string) float64 {
	v, err := unit.Parse(tok)
	if err != nil {
		glog.Warningf("[%s]: %v", kw, err)
		return unit.NA()
	}
	return v
}

func parseFlag(args string) bool {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "0", "off", "no", "false":
		return false
	}
	return true
}

func (p *parser) handleKeyword(kw, args string) {
	fields := strings.Fields(args)
	g := p.top.Global
	p.section = ""

	switch kw {
	// Header keywords.
	case "ibis ver":
		if len(fields) > 0 {
			g.IbisVer = parseScalar(kw, fields[0])
		}
	case "file name":
		g.FileName = args
	case "file rev":
		g.FileRev = args
	case "date":
		g.Date = args
	case "source":
		g.Source = args
	case "notes":
		g.Notes = args
	case "disclaimer":
		g.Disclaimer = args
	case "copyright":
		g.Copyright = args

	// Simulator selection.
	case "spice type":
		st, ok := ibis.ParseSpiceType(args)
		if !ok {
			glog.Warningf("[Spice Type]: unknown simulator %q, using hspice", args)
		}
		g.SpiceType = st
	case "spice command":
		g.SpiceCommand = args
	case "iterate":
		g.Iterate = parseFlag(args)
	case "cleanup":
		g.Cleanup = parseFlag(args)

	// Component scope.
	case "component":
		p.closeModel()
		p.closeComponent()
		p.comp = ibis.NewComponent(args)
	case "manufacturer":
		if p.comp == nil {
			glog.Warningf("[Manufacturer] outside a component, skipped")
			return
		}
		p.comp.Manufacturer = args
	case "package model":
		if p.comp == nil {
			glog.Warningf("[Package Model] outside a component, skipped")
			return
		}
		p.comp.PackageModel = args
	case "spice file":
		if p.comp == nil {
			glog.Warningf("[Spice File] outside a component, skipped")
			return
		}
		p.comp.SpiceFile = args
	case "series spice file":
		if p.comp == nil {
			glog.Warningf("[Series Spice File] outside a component, skipped")
			return
		}
		p.comp.SeriesSpiceFile = args

	// Row-consuming sections.
	case "pin", "diff pin", "series pin mapping", "pin mapping", "series switch groups":
		if p.comp == nil {
			glog.Warningf("[%s] outside a component, rows will be skipped", kw)
			return
		}
		p.section = kw
		if kw == "pin mapping" {
			p.comp.HasPinMapping = true
		}

	// Model scope.
	case "model":
		p.closeModel()
		if len(fields) == 0 {
			glog.Warningf("[Model] with no name, skipped")
			return
		}
		p.mdl = ibis.NewModel(fields[0])
	case "model type":
		if p.mdl == nil {
			glog.Warningf("[Model Type] outside a model, skipped")
			return
		}
		mt, err := ibis.ParseModelType(args)
		if err != nil {
			glog.Warningf("[Model Type]: %v", err)
			return
		}
		p.mdl.Type = mt
		p.attachSeries()
	case "polarity":
		if p.mdl != nil {
			p.mdl.Polarity = args
		}
	case "enable":
		if p.mdl != nil {
			p.mdl.Enable = args
		}
	case "nomodel":
		if p.mdl != nil {
			p.mdl.Type = ibis.NoModel
		}
	case "model file":
		if p.mdl == nil {
			glog.Warningf("[Model File] outside a model, skipped")
			return
		}
		for i, f := range fields {
			if i >= len(p.mdl.ModelFile) {
				break
			}
			p.mdl.ModelFile[i] = f
		}
	case "extspicecmd":
		if p.mdl != nil {
			p.mdl.ExtSpiceCmd = args
		}

	case "vinl":
		if p.mdl != nil {
			p.mdl.Vinl = parseTMM(kw, fields)
		}
	case "vinh":
		if p.mdl != nil {
			p.mdl.Vinh = parseTMM(kw, fields)
		}
	case "vmeas":
		if p.mdl != nil {
			p.mdl.Vmeas = parseTMM(kw, fields)
		}
	case "cref":
		if p.mdl != nil {
			p.mdl.Cref = parseTMM(kw, fields)
		}
	case "rref":
		if p.mdl != nil {
			p.mdl.Rref = parseTMM(kw, fields)
		}
	case "vref":
		if p.mdl != nil {
			p.mdl.Vref = parseTMM(kw, fields)
		}
	case "rgnd":
		if p.mdl != nil {
			p.mdl.Rgnd = parseTMM(kw, fields)
		}
	case "rpower":
		if p.mdl != nil {
			p.mdl.Rpower = parseTMM(kw, fields)
		}
	case "rac":
		if p.mdl != nil {
			p.mdl.Rac = parseTMM(kw, fields)
		}
	case "cac":
		if p.mdl != nil {
			p.mdl.Cac = parseTMM(kw, fields)
		}

	case "rising waveform", "falling waveform":
		p.handleWaveform(kw, fields)

	// Series model record.
	case "series mosfet":
		p.seriesRecord()
	case "vds":
		rec := p.seriesRecord()
		for _, f := range fields {
			v, err := unit.Parse(f)
			if err != nil {
				glog.Warningf("[Vds]: %v", err)
				continue
			}
			rec.Vds = append(rec.Vds, v)
		}
	case "on":
		p.seriesRecord().On = true
	case "off":
		p.seriesRecord().Off = true
	case "r series":
		p.seriesRecord().RSeries = parseTMM(kw, fields)

	// Scope-aware simulation parameters.
	case "temperature range":
		p.scope().TempRange = parseTMM(kw, fields)
	case "voltage range":
		p.scope().VoltageRange = parseTMM(kw, fields)
	case "pullup reference":
		p.scope().PullupRef = parseTMM(kw, fields)
	case "pulldown reference":
		p.scope().PulldownRef = parseTMM(kw, fields)
	case "power clamp reference":
		p.scope().PowerClampRef = parseTMM(kw, fields)
	case "gnd clamp reference":
		p.scope().GndClampRef = parseTMM(kw, fields)
	case "r_pkg":
		p.scope().RPkg = parseTMM(kw, fields)
	case "l_pkg":
		p.scope().LPkg = parseTMM(kw, fields)
	case "c_pkg":
		p.scope().CPkg = parseTMM(kw, fields)
	case "c_comp":
		p.scope().CComp = parseTMM(kw, fields)
	case "vil":
		p.scope().Vil = parseTMM(kw, fields)
	case "vih":
		p.scope().Vih = parseTMM(kw, fields)
	case "tr":
		p.scope().Tr = parseTMM(kw, fields)
	case "tf":
		p.scope().Tf = parseTMM(kw, fields)
	case "rload":
		if len(fields) > 0 {
			p.scope().Rload = parseScalar(kw, fields[0])
		}
	case "sim time":
		if len(fields) > 0 {
			p.scope().SimTime = parseScalar(kw, fields[0])
		}
	case "clamp tolerance":
		if len(fields) > 0 {
			p.scope().ClampTol = parseScalar(kw, fields[0])
		}
	case "derate vi":
		if len(fields) > 0 {
			p.scope().DerateVI = parseScalar(kw, fields[0])
		}
	case "derate ramp":
		if len(fields) > 0 {
			p.scope().DerateRamp = parseScalar(kw, fields[0])
		}

	default:
		glog.Warningf("unknown keyword [%s] skipped", kw)
	}
}

// handleWaveform reads the up-to-nine positional fixture parameters.
func (p *parser) handleWaveform(kw string, fields []string) {
	if p.mdl == nil {
		glog.Warningf("[%s] outside a model, skipped", kw)
		return
	}
	w := &ibis.Waveform{
		RFixture:    unit.NA(),
		VFixture:    unit.NA(),
		VFixtureMin: unit.NA(),
		VFixtureMax: unit.NA(),
		LFixture:    unit.NA(),
		CFixture:    unit.NA(),
		RDut:        unit.NA(),
		LDut:        unit.NA(),
		CDut:        unit.NA(),
	}
	slots := []*float64{
		&w.RFixture, &w.VFixture, &w.VFixtureMin, &w.VFixtureMax,
		&w.LFixture, &w.CFixture, &w.RDut, &w.LDut, &w.CDut,
	}
	for i, f := range fields {
		if i >= len(slots) {
			glog.Warningf("[%s]: extra token %q ignored", kw, f)
			break
		}
		v, err := unit.Parse(f)
		if err != nil {
			glog.Warningf("[%s]: %v", kw, err)
			continue
		}
		*slots[i] = v
	}
	if kw == "rising waveform" {
		p.mdl.RisingWaves = append(p.mdl.RisingWaves, w)
	} else {
		p.mdl.FallingWaves = append(p.mdl.FallingWaves, w)
	}
}

func (p *parser) handleRow(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch p.section {
	case "pin":
		p.handlePinRow(fields)
	case "diff pin":
		p.handleDiffPinRow(fields)
	case "series pin mapping":
		p.handleSeriesPinRow(fields)
	case "pin mapping":
		p.handlePinMapRow(fields)
	case "series switch groups":
		p.comp.SeriesSwitchGroups = append(p.comp.SeriesSwitchGroups, strings.Join(fields, " "))
	default:
		glog.Warningf("stray data row skipped: %q", line)
	}
}

// handlePinRow reads one [Pin] row:
//
//	pin spice_node signal model [R L C] [puRef pdRef pcRef gcRef] [inputPin [enablePin]]
//
// or a "-> inputPin [enablePin]" continuation for the previous pin.
func (p *parser) handlePinRow(fields []string) {
	if fields[0] == "->" {
		if p.lastPin == nil {
			glog.Warningf("-> row with no preceding pin, skipped")
			return
		}
		if len(fields) > 1 {
			p.lastPin.InputPin = fields[1]
		}
		if len(fields) > 2 {
			p.lastPin.EnablePin = fields[2]
		}
		return
	}
	if len(fields) < 4 {
		glog.Warningf("[Pin] row with %d tokens skipped: %v", len(fields), fields)
		return
	}

	pin := ibis.NewPin(fields[0])
	pin.SpiceNode = fields[1]
	pin.SignalName = fields[2]
	pin.ModelName = fields[3]

	rest := fields[4:]
	if vals, ok := takeNumbers(rest, 3); ok {
		pin.RPin, pin.LPin, pin.CPin = vals[0], vals[1], vals[2]
		rest = rest[3:]
		if refs, ok := takeNumbers(rest, 4); ok {
			pin.PullupRef, pin.PulldownRef = refs[0], refs[1]
			pin.PowerClampRef, pin.GndClampRef = refs[2], refs[3]
			rest = rest[4:]
		}
	}
	if len(rest) > 0 {
		pin.InputPin = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		pin.EnablePin = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		glog.Warningf("[Pin] %s: %d trailing tokens ignored", pin.Name, len(rest))
	}

	p.comp.Pins = append(p.comp.Pins, pin)
	p.lastPin = pin
}

// takeNumbers parses exactly n leading numeric tokens, or reports false
// without consuming anything.
func takeNumbers(fields []string, n int) ([]float64, bool) {
	if len(fields) < n {
		return nil, false
	}
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := unit.Parse(fields[i])
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func (p *parser) handleDiffPinRow(fields []string) {
	if len(fields) != 4 && len(fields) != 6 {
		glog.Warningf("[Diff Pin] row needs 4 or 6 tokens, got %d: %v", len(fields), fields)
		return
	}
	dp := &ibis.DiffPin{
		Pin:    fields[0],
		InvPin: fields[1],
		Vdiff:  parseScalar("Diff Pin", fields[2]),
		Tdelay: parseTMM("Diff Pin", fields[3:]),
	}
	p.comp.DiffPins = append(p.comp.DiffPins, dp)
}

func (p *parser) handleSeriesPinRow(fields []string) {
	if len(fields) != 3 && len(fields) != 4 {
		glog.Warningf("[Series Pin Mapping] row needs 3 or 4 tokens, got %d: %v", len(fields), fields)
		return
	}
	sp := &ibis.SeriesPinMap{
		Pin1:      fields[0],
		Pin2:      fields[1],
		ModelName: fields[2],
	}
	if len(fields) == 4 {
		sp.Group = fields[3]
	}
	p.comp.SeriesPinMaps = append(p.comp.SeriesPinMaps, sp)
}

func (p *parser) handlePinMapRow(fields []string) {
	if len(fields) != 3 && len(fields) != 5 {
		glog.Warningf("[Pin Mapping] row needs 3 or 5 tokens, got %d: %v", len(fields), fields)
		return
	}
	pm := &ibis.PinMap{
		Pin:         fields[0],
		PullupRef:   fields[1],
		PulldownRef: fields[2],
	}
	if len(fields) == 5 {
		pm.GndClampRef = fields[3]
		pm.PowerClampRef = fields[4]
	}
	p.comp.PinMaps = append(p.comp.PinMaps, pm)
}
