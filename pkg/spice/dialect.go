// Package spice synthesizes SPICE decks from fragments, drives the
// external simulator, classifies its failure modes from log text, and
// parses raw output into VI tables, ramp times, and binned waveforms.
package spice

import "strings"

// Dialect captures everything simulator-specific: command line shape,
// output markers, and netlist syntax quirks. Adding a simulator means
// adding one implementation here, nothing else.
type Dialect interface {
	Name() string

	// Argv builds the command line. stdoutTo is non-empty when the
	// simulator writes results to stdout and we must redirect it.
	Argv(cmd, in, out, msg string) (argv []string, stdoutTo string)

	// DataMarker is the line that precedes the data section in the
	// output file; empty means data rows start immediately.
	DataMarker() string
	// HeaderLines is how many header lines, the marker line included,
	// precede the first data row.
	HeaderLines() int

	AbortMarker() string
	ConvergenceMarker() string

	// CheckMsgFile reports whether abort markers are also searched for
	// in the .msg log.
	CheckMsgFile() bool

	// LangLine is an extra deck header line, if the dialect needs one.
	LangLine() string
	// WantsEnd reports whether the deck is terminated with .END.
	WantsEnd() bool
}

// Generic free-text needles searched in both files for every dialect.
var (
	abortNeedles    = []string{"abort", "simulation aborted"}
	convergeNeedles = []string{"convergence failure", "non convergence"}
)

func containsAny(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

type hspice struct{}

func (hspice) Name() string { return "hspice" }

func (hspice) Argv(cmd, in, out, msg string) ([]string, string) {
	return []string{cmd, "-i", in, "-o", out}, ""
}

func (hspice) DataMarker() string        { return "volt" }
func (hspice) HeaderLines() int          { return 1 }
func (hspice) AbortMarker() string       { return "aborted" }
func (hspice) ConvergenceMarker() string { return "convergence failure" }
func (hspice) CheckMsgFile() bool        { return true }
func (hspice) LangLine() string          { return "" }
func (hspice) WantsEnd() bool            { return true }

type spectre struct{}

func (spectre) Name() string { return "spectre" }

func (spectre) Argv(cmd, in, out, msg string) ([]string, string) {
	return []string{cmd, "+log", msg, in}, ""
}

func (spectre) DataMarker() string        { return "" }
func (spectre) HeaderLines() int          { return 0 }
func (spectre) AbortMarker() string       { return "" }
func (spectre) ConvergenceMarker() string { return "" }
func (spectre) CheckMsgFile() bool        { return true }
func (spectre) LangLine() string          { return "simulator lang = spectre" }
func (spectre) WantsEnd() bool            { return false }

type eldo struct{}

func (eldo) Name() string { return "eldo" }

func (eldo) Argv(cmd, in, out, msg string) ([]string, string) {
	return []string{cmd, in}, out
}

func (eldo) DataMarker() string        { return "" }
func (eldo) HeaderLines() int          { return 0 }
func (eldo) AbortMarker() string       { return "" }
func (eldo) ConvergenceMarker() string { return "" }

// Eldo interleaves progress chatter in its log that trips the abort
// needles, so the .msg scan is skipped for it.
func (eldo) CheckMsgFile() bool { return false }
func (eldo) LangLine() string   { return "" }
func (eldo) WantsEnd() bool     { return true }

// DialectFor maps the configured simulator type to its dialect.
func DialectFor(name string) Dialect {
	switch strings.ToLower(name) {
	case "spectre":
		return spectre{}
	case "eldo":
		return eldo{}
	}
	return hspice{}
}
