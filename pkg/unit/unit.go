// Package unit handles the numeric dialect shared by the .s2i config format
// and SPICE output files: floats with single-letter SI suffixes, optional
// trailing unit letters, and NA as the not-set sentinel.
package unit

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NA is the unset sentinel. Every typ/min/max quantity starts out NA and
// arithmetic on NA must stay NA.
func NA() float64 { return math.NaN() }

// IsNA reports whether v is the unset sentinel.
func IsNA(v float64) bool { return math.IsNaN(v) }

var suffixMap = map[string]float64{
	"T":   1e12,
	"G":   1e9,
	"meg": 1e6,
	"M":   1e6,
	"K":   1e3,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"n":   1e-9,
	"p":   1e-12,
	"f":   1e-15,
}

var valueRe = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)(meg|[TGMKkmunpf])?$`)

// Trailing unit letters that may follow the SI suffix: 2.0nV, 10pF, 5ms.
// The ohm unit is spelled out as a word.
const unitLetters = "VHFsA"

func stripUnit(tok string) string {
	lower := strings.ToLower(tok)
	for _, word := range []string{"ohms", "ohm"} {
		if strings.HasSuffix(lower, word) && len(tok) > len(word) {
			return tok[:len(tok)-len(word)]
		}
	}
	if len(tok) > 1 && strings.ContainsRune(unitLetters, rune(tok[len(tok)-1])) {
		// Keep a bare suffix like "5m" intact; only strip when what is left
		// still ends in a digit or SI letter.
		return tok[:len(tok)-1]
	}
	return tok
}

// Parse converts a numeric token to a float. "NA", "N/A" and "NaN" in any
// case yield the unset sentinel. 1k -> 1000, 2.0nV -> 2e-9.
func Parse(tok string) (float64, error) {
	tok = strings.TrimSpace(tok)
	switch strings.ToUpper(tok) {
	case "NA", "N/A", "NAN":
		return NA(), nil
	}

	m := valueRe.FindStringSubmatch(tok)
	if m == nil {
		m = valueRe.FindStringSubmatch(stripUnit(tok))
	}
	if m == nil {
		return 0, fmt.Errorf("invalid value format: %q", tok)
	}

	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	if m[2] != "" {
		num *= suffixMap[m[2]]
	}
	return num, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
// Intended for tests and built-in tables.
func MustParse(tok string) float64 {
	v, err := Parse(tok)
	if err != nil {
		panic(err)
	}
	return v
}

// Scalar is a float64 that unmarshals from YAML accepting the same SI
// suffixed spellings as Parse, so the YAML front end and the .s2i parser
// agree on numeric literals.
type Scalar float64

func (s *Scalar) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*s = Scalar(v)
	case int:
		*s = Scalar(float64(v))
	case nil:
		*s = Scalar(NA())
	case string:
		f, err := Parse(v)
		if err != nil {
			return err
		}
		*s = Scalar(f)
	default:
		return fmt.Errorf("cannot decode %T as scalar", raw)
	}
	return nil
}
