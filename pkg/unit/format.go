package unit

import "fmt"

// Prefix ladder tried largest first so the mantissa lands in [0.1, 1000).
var prefixes = []struct {
	factor float64
	letter string
}{
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
}

// Format renders a value the way IBIS files spell numbers: 4 significant
// digits with an SI prefix when one fits, plain %.4g otherwise, the literal
// NA for the unset sentinel.
func Format(v float64) string {
	if IsNA(v) {
		return "NA"
	}
	if v == 0 {
		return "0"
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	for _, p := range prefixes {
		scaled := abs / p.factor
		if scaled >= 0.1 && scaled < 1000 {
			return fmt.Sprintf("%.4g%s", v/p.factor, p.letter)
		}
	}
	return fmt.Sprintf("%.4g", v)
}

// FormatUnit appends a unit letter after the SI prefix: 2.2nV, 50.00Ohm.
func FormatUnit(v float64, u string) string {
	s := Format(v)
	if s == "NA" {
		return s
	}
	return s + u
}
