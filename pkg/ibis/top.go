package ibis

import (
	"strings"

	"spice2ibis/pkg/unit"
)

// SpiceType selects the simulator dialect named by [Spice Type].
type SpiceType int

const (
	HSpice SpiceType = iota
	Spectre
	Eldo
)

func (s SpiceType) String() string {
	switch s {
	case Spectre:
		return "spectre"
	case Eldo:
		return "eldo"
	}
	return "hspice"
}

// ParseSpiceType resolves a [Spice Type] token; unknown names fall back to
// hspice with ok=false so the caller can warn.
func ParseSpiceType(s string) (SpiceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hspice", "":
		return HSpice, true
	case "spectre":
		return Spectre, true
	case "eldo":
		return Eldo, true
	}
	return HSpice, false
}

// Global holds header keywords and process-wide defaults. Read-only once
// parsing completes.
type Global struct {
	IbisVer    float64
	FileName   string
	FileRev    string
	Date       string
	Source     string
	Notes      string
	Disclaimer string
	Copyright  string

	SpiceType    SpiceType
	SpiceCommand string
	Iterate      bool
	Cleanup      bool

	Params
}

func NewGlobal() *Global {
	return &Global{
		IbisVer: unit.NA(),
		Params:  NewParams(),
	}
}

// TOP is the whole document: it exclusively owns the component list and,
// separately, the flat model list. Pins only borrow model references.
type TOP struct {
	Global     *Global
	Components []*Component
	Models     []*Model
}

func NewTOP() *TOP {
	return &TOP{Global: NewGlobal()}
}

// FindModel resolves a model by case-insensitive name.
func (t *TOP) FindModel(name string) *Model {
	for _, m := range t.Models {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}
