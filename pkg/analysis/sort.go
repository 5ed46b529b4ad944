package analysis

import (
	"math"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/spice"
	"spice2ibis/pkg/unit"
)

// sizeFor computes the final table length a sweep implies, capped by the
// IBIS table limit and by what the simulation actually produced.
func sizeFor(sw spice.Sweep, rawLen int) int {
	n := consts.MaxTableSize
	if sw.Step != 0 && !math.IsNaN(sw.Step) && !math.IsNaN(sw.Span) {
		n = int(math.Abs(sw.Span/sw.Step)) + 1
	}
	if n > consts.MaxTableSize {
		n = consts.MaxTableSize
	}
	if n > rawLen {
		n = rawLen
	}
	return n
}

// derateVI widens the min and max currents of every entry by the
// configured percentage. Typ stays untouched; NA corners stay NA.
func derateVI(t *ibis.VITable, pct float64) {
	if unit.IsNA(pct) || pct == 0 {
		return
	}
	lo := 1 - pct/100
	hi := 1 + pct/100
	for i := range t.Entries {
		t.Entries[i].I.Min *= lo
		t.Entries[i].I.Max *= hi
	}
}

// SortVIData turns one raw sweep table into its final IBIS form. The
// transformation depends on the curve: pullup and power clamp become
// VCC-relative, clamps are filtered against the typ supply, and pulldown
// keeps its terminal point pinned to the sweep's real endpoint.
func SortVIData(ct spice.CurveType, raw *ibis.VITable, sw spice.Sweep, deratePct float64) *ibis.VITable {
	if raw == nil || len(raw.Entries) == 0 {
		return nil
	}
	vccTyp := val(sw.Vcc.Typ)
	n := sizeFor(sw, len(raw.Entries))
	out := ibis.NewVITable(0)

	switch ct {
	case spice.Pullup, spice.DisabledPullup:
		// Last n points reversed, so the VCC-relative voltage ascends.
		for i := 0; i < n; i++ {
			e := raw.Entries[len(raw.Entries)-1-i]
			out.Append(ibis.VIEntry{V: vccTyp - e.V, I: e.I})
		}

	case spice.Pulldown, spice.DisabledPulldown:
		for i := 0; i < n; i++ {
			out.Append(raw.Entries[i])
		}
		// The written table must end on the sweep's actual endpoint even
		// when truncation dropped it.
		if out.Size > 0 {
			out.Entries[out.Size-1] = raw.Entries[len(raw.Entries)-1]
		}

	case spice.PowerClamp:
		for i := len(raw.Entries) - 1; i >= 0 && out.Size < n; i-- {
			e := raw.Entries[i]
			if e.V >= vccTyp {
				out.Append(ibis.VIEntry{V: vccTyp - e.V, I: e.I})
			}
		}

	case spice.GndClamp:
		// The cutoff is the typ supply, not ground.
		for i := 0; i < len(raw.Entries) && out.Size < n; i++ {
			if raw.Entries[i].V <= vccTyp {
				out.Append(raw.Entries[i])
			}
		}

	default:
		return nil
	}

	derateVI(out, deratePct)
	return out
}

// SortVISeriesData converts a series VI table to VCC-relative voltages
// without reordering.
func SortVISeriesData(raw *ibis.VITable, vccTyp float64) *ibis.VITable {
	if raw == nil || len(raw.Entries) == 0 {
		return nil
	}
	out := ibis.NewVITable(0)
	for _, e := range raw.Entries {
		if !out.Append(ibis.VIEntry{V: vccTyp - e.V, I: e.I}) {
			break
		}
	}
	return out
}

// subtractDisabled removes the disabled-buffer leakage from an enabled
// curve, point by point. Either operand missing at a corner leaves that
// corner unset rather than passing a half-computed value through.
func subtractDisabled(enabled, disabled *ibis.VITable) {
	if enabled == nil || disabled == nil {
		return
	}
	n := len(enabled.Entries)
	if len(disabled.Entries) < n {
		n = len(disabled.Entries)
	}
	for i := 0; i < n; i++ {
		enabled.Entries[i].I = ibis.Sub(enabled.Entries[i].I, disabled.Entries[i].I)
	}
}
