package ibis

import (
	"fmt"
	"strings"
)

// ModelType is the closed set of IBIS buffer types. Capability predicates
// below are exhaustive switches so a new type cannot be added without the
// compiler flagging every table that needs a row for it.
type ModelType int

const (
	ModelNone ModelType = iota
	Input
	Output
	IO
	ThreeState
	OpenDrain
	IOOpenDrain
	OpenSink
	IOOpenSink
	OpenSource
	IOOpenSource
	InputECL
	OutputECL
	IOECL
	ThreeStateECL
	Terminator
	Series
	SeriesSwitch
	NoModel
)

// String returns the exact IBIS-spec token.
func (m ModelType) String() string {
	switch m {
	case Input:
		return "Input"
	case Output:
		return "Output"
	case IO:
		return "I/O"
	case ThreeState:
		return "3-state"
	case OpenDrain:
		return "Open_drain"
	case IOOpenDrain:
		return "I/O_open_drain"
	case OpenSink:
		return "Open_sink"
	case IOOpenSink:
		return "I/O_open_sink"
	case OpenSource:
		return "Open_source"
	case IOOpenSource:
		return "I/O_open_source"
	case InputECL:
		return "Input_ECL"
	case OutputECL:
		return "Output_ECL"
	case IOECL:
		return "I/O_ECL"
	case ThreeStateECL:
		return "3-state_ECL"
	case Terminator:
		return "Terminator"
	case Series:
		return "Series"
	case SeriesSwitch:
		return "Series_switch"
	case NoModel:
		return "nomodel"
	case ModelNone:
		return ""
	}
	return ""
}

var modelTypeNames = map[string]ModelType{
	"input":           Input,
	"output":          Output,
	"io":              IO,
	"i/o":             IO,
	"3-state":         ThreeState,
	"3_state":         ThreeState,
	"three-state":     ThreeState,
	"open_drain":      OpenDrain,
	"open-drain":      OpenDrain,
	"i/o_open_drain":  IOOpenDrain,
	"io_open_drain":   IOOpenDrain,
	"open_sink":       OpenSink,
	"i/o_open_sink":   IOOpenSink,
	"io_open_sink":    IOOpenSink,
	"open_source":     OpenSource,
	"i/o_open_source": IOOpenSource,
	"io_open_source":  IOOpenSource,
	"input_ecl":       InputECL,
	"output_ecl":      OutputECL,
	"i/o_ecl":         IOECL,
	"io_ecl":          IOECL,
	"3-state_ecl":     ThreeStateECL,
	"3_state_ecl":     ThreeStateECL,
	"terminator":      Terminator,
	"series":          Series,
	"series_switch":   SeriesSwitch,
	"nomodel":         NoModel,
}

// ParseModelType resolves a [Model Type] token, case-insensitively.
func ParseModelType(s string) (ModelType, error) {
	if mt, ok := modelTypeNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return mt, nil
	}
	return ModelNone, fmt.Errorf("unknown model type %q", s)
}

// IsECL reports whether the type follows ECL supply conventions.
func (m ModelType) IsECL() bool {
	switch m {
	case InputECL, OutputECL, IOECL, ThreeStateECL:
		return true
	case ModelNone, Input, Output, IO, ThreeState, OpenDrain, IOOpenDrain,
		OpenSink, IOOpenSink, OpenSource, IOOpenSource, Terminator,
		Series, SeriesSwitch, NoModel:
		return false
	}
	return false
}

// NeedsPullup reports whether pullup VI data is simulated for the type.
func (m ModelType) NeedsPullup() bool {
	switch m {
	case Output, IO, ThreeState, OpenSource, IOOpenSource,
		OutputECL, IOECL, ThreeStateECL:
		return true
	case ModelNone, Input, OpenDrain, IOOpenDrain, OpenSink, IOOpenSink,
		InputECL, Terminator, Series, SeriesSwitch, NoModel:
		return false
	}
	return false
}

// NeedsPulldown reports whether pulldown VI data is simulated for the type.
func (m ModelType) NeedsPulldown() bool {
	switch m {
	case Output, IO, ThreeState, OpenDrain, IOOpenDrain, OpenSink,
		IOOpenSink, OutputECL, IOECL, ThreeStateECL:
		return true
	case ModelNone, Input, OpenSource, IOOpenSource, InputECL, Terminator,
		Series, SeriesSwitch, NoModel:
		return false
	}
	return false
}

// NeedsClamps reports whether power/ground clamp curves are simulated.
func (m ModelType) NeedsClamps() bool {
	switch m {
	case Input, IO, ThreeState, Terminator, InputECL, IOECL, ThreeStateECL,
		IOOpenDrain, IOOpenSink, IOOpenSource:
		return true
	case ModelNone, Output, OpenDrain, OpenSink, OpenSource, OutputECL,
		Series, SeriesSwitch, NoModel:
		return false
	}
	return false
}

// UsesClampSpan reports whether the sweep's linear range derives from the
// clamp references rather than the pullup/pulldown references.
func (m ModelType) UsesClampSpan() bool {
	switch m {
	case Input, ThreeState, IO, Terminator, Series, SeriesSwitch:
		return true
	case ModelNone, Output, OpenDrain, IOOpenDrain, OpenSink, IOOpenSink,
		OpenSource, IOOpenSource, InputECL, OutputECL, IOECL,
		ThreeStateECL, NoModel:
		return false
	}
	return false
}

// NeedsTransient reports whether ramp and waveform data are simulated:
// every output-capable type.
func (m ModelType) NeedsTransient() bool {
	switch m {
	case Output, IO, ThreeState, OpenDrain, IOOpenDrain, OpenSink,
		IOOpenSink, OpenSource, IOOpenSource, OutputECL, IOECL,
		ThreeStateECL:
		return true
	case ModelNone, Input, InputECL, Terminator, Series, SeriesSwitch, NoModel:
		return false
	}
	return false
}
