package ibis

import (
	"strings"

	"spice2ibis/pkg/unit"
)

// UnusedRLC marks a per-pin parasitic the config never mentioned. Distinct
// from NA so "row had no parasitic columns" and "column said NA" remain
// distinguishable to the writer.
const UnusedRLC = -1.0

// Pin belongs to exactly one Component and points at a shared Model once
// linking has run. The Model reference is a lookup back-reference only;
// the document's flat model list owns the models.
type Pin struct {
	Name       string
	SpiceNode  string
	SignalName string
	ModelName  string
	Model      *Model

	RPin float64
	LPin float64
	CPin float64

	// Optional per-pin supply overrides.
	PullupRef     float64
	PulldownRef   float64
	PowerClampRef float64
	GndClampRef   float64

	InputPin  string
	EnablePin string
}

func NewPin(name string) *Pin {
	return &Pin{
		Name:          name,
		RPin:          UnusedRLC,
		LPin:          UnusedRLC,
		CPin:          UnusedRLC,
		PullupRef:     unit.NA(),
		PulldownRef:   unit.NA(),
		PowerClampRef: unit.NA(),
		GndClampRef:   unit.NA(),
	}
}

// Reserved model names mark pins that never link to a real model.
var reservedModelNames = map[string]bool{
	"POWER":   true,
	"GND":     true,
	"NC":      true,
	"NOMODEL": true,
	"DUMMY":   true,
}

// IsReservedModelName reports whether name is one of the sentinel pin
// model names (POWER, GND, NC, NOMODEL, DUMMY), case-insensitively.
func IsReservedModelName(name string) bool {
	return reservedModelNames[strings.ToUpper(name)]
}

// DiffPin is one differential pair declaration. A 4-token row supplies the
// typ delay only; a 6-token row supplies all three corners.
type DiffPin struct {
	Pin    string
	InvPin string
	Vdiff  float64
	Tdelay TypMinMax
}

// SeriesPinMap maps a series pin pair to its model.
type SeriesPinMap struct {
	Pin1      string
	Pin2      string
	ModelName string
	Group     string
}

// PinMap declares a pin's pullup/pulldown supply rails.
type PinMap struct {
	Pin           string
	PullupRef     string
	PulldownRef   string
	GndClampRef   string
	PowerClampRef string
}

// Component is one physical part.
type Component struct {
	Name            string
	Manufacturer    string
	PackageModel    string
	SpiceFile       string
	SeriesSpiceFile string

	// True once a [Pin Mapping] section supplied explicit supply rails.
	HasPinMapping bool

	Params

	Pins               []*Pin
	DiffPins           []*DiffPin
	SeriesPinMaps      []*SeriesPinMap
	PinMaps            []*PinMap
	SeriesSwitchGroups []string
}

func NewComponent(name string) *Component {
	return &Component{Name: name, Params: NewParams()}
}

// FindPin looks a pin up by name.
func (c *Component) FindPin(name string) *Pin {
	for _, p := range c.Pins {
		if p.Name == name {
			return p
		}
	}
	return nil
}
