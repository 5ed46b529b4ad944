package spice

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

// dataRows extracts the numeric rows from simulator output text. When
// the dialect names a data marker, everything before that line (plus the
// dialect's header lines) is skipped; otherwise the whole file is
// scanned. A row is two or three columns that all parse as numbers,
// which filters banners, blank lines, and the hspice "y" footer.
func dataRows(d Dialect, text string) [][]float64 {
	lines := strings.Split(text, "\n")

	start := 0
	if marker := d.DataMarker(); marker != "" {
		start = len(lines) // marker missing means no data section
		for i, line := range lines {
			if containsAny(line, []string{marker}) {
				skip := d.HeaderLines()
				if skip < 1 {
					skip = 1
				}
				start = i + skip
				break
			}
		}
	}

	var rows [][]float64
	for _, line := range lines[min(start, len(lines)):] {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			continue
		}
		row := make([]float64, 0, len(fields))
		ok := true
		for _, f := range fields {
			v, err := unit.Parse(f)
			if err != nil || unit.IsNA(v) {
				ok = false
				break
			}
			row = append(row, v)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func countDataRows(d Dialect, text string) int { return len(dataRows(d, text)) }

// ParseVI folds one corner's DC sweep output into the table. The typ
// pass establishes the voltage column and the table length; min and max
// passes only fill their current column, matched by row index. Currents
// are negated so positive current flows out of the component, per IBIS
// convention.
func ParseVI(d Dialect, path string, corner int, tbl *ibis.VITable) error {
	rows := dataRows(d, readAll(path))
	if len(rows) == 0 {
		return errors.Errorf("no data rows in %s", path)
	}

	if corner == consts.Typ {
		tbl.Entries = tbl.Entries[:0]
		for _, row := range rows {
			e := ibis.VIEntry{V: row[0], I: ibis.NewTMM()}
			e.I.Typ = -row[1]
			if !tbl.Append(e) {
				break
			}
		}
		return nil
	}

	n := len(rows)
	if len(tbl.Entries) < n {
		n = len(tbl.Entries)
	}
	for i := 0; i < n; i++ {
		tbl.Entries[i].I.SetCorner(corner, -rows[i][1])
	}
	return nil
}

// ParseRamp extracts the 20%-80% edge from one transient output. The
// swing endpoints are the first and last sampled voltages, so the same
// computation serves rising and falling edges. Returns the voltage
// delta between the threshold crossings and the time between them.
func ParseRamp(d Dialect, path string) (dv, dt float64, err error) {
	rows := dataRows(d, readAll(path))
	if len(rows) < 2 {
		return 0, 0, errors.Errorf("no transient data in %s", path)
	}

	t := make([]float64, len(rows))
	v := make([]float64, len(rows))
	for i, row := range rows {
		t[i] = row[0]
		v[i] = row[1]
	}
	// Simulators are not obliged to emit monotone time. Sort v along t.
	inds := make([]int, len(t))
	floats.Argsort(t, inds)
	sorted := make([]float64, len(v))
	for i, idx := range inds {
		sorted[i] = v[idx]
	}
	v = sorted

	vStart, vEnd := v[0], v[len(v)-1]
	swing := vEnd - vStart
	if swing == 0 {
		return 0, 0, errors.Errorf("flat trace in %s", path)
	}
	v20 := vStart + 0.2*swing
	v80 := vStart + 0.8*swing

	t20, ok20 := crossing(t, v, v20)
	t80, ok80 := crossing(t, v, v80)
	if !ok20 || !ok80 {
		return 0, 0, errors.Errorf("edge thresholds not crossed in %s", path)
	}

	dv = 0.6 * swing
	if dv < 0 {
		dv = -dv
	}
	dt = t80 - t20
	if dt < 0 {
		dt = -dt
	}
	if dt == 0 {
		return 0, 0, errors.Errorf("zero edge time in %s", path)
	}
	return dv, dt, nil
}

// crossing returns the linearly interpolated time of the first crossing
// of level by the trace.
func crossing(t, v []float64, level float64) (float64, bool) {
	for i := 1; i < len(v); i++ {
		a, b := v[i-1], v[i]
		if (a-level)*(b-level) > 0 {
			continue
		}
		if a == b {
			return t[i-1], true
		}
		frac := (level - a) / (b - a)
		return t[i-1] + frac*(t[i]-t[i-1]), true
	}
	return 0, false
}

// WaveSample is one binned point of a transient trace.
type WaveSample struct {
	T, V, I float64
	HasI    bool
}

// ParseWave reduces one transient output to a fixed number of
// time-binned samples over [0, simTime]. Every bin sits at its nominal
// time, bin index times bin width, regardless of where the raw points
// landed inside it, so all corners share one time grid. A populated bin
// averages its raw voltages; empty bins interpolate between their
// populated neighbors. The final sample's time is pinned to simTime.
func ParseWave(d Dialect, path string, simTime float64) ([]WaveSample, error) {
	rows := dataRows(d, readAll(path))
	if len(rows) == 0 {
		return nil, errors.Errorf("no transient data in %s", path)
	}
	if simTime <= 0 {
		return nil, errors.Errorf("non-positive simulation time for %s", path)
	}

	const n = consts.WavePointsDefault
	var sumV, sumI [n]float64
	var cnt, cntI [n]int

	for _, row := range rows {
		bin := int(row[0] / simTime * n)
		if bin < 0 {
			bin = 0
		}
		if bin >= n {
			bin = n - 1
		}
		sumV[bin] += row[1]
		cnt[bin]++
		if len(row) == 3 {
			sumI[bin] += row[2]
			cntI[bin]++
		}
	}

	samples := make([]WaveSample, n)
	closed := make([]bool, n)
	for i := 0; i < n; i++ {
		samples[i].T = float64(i) * simTime / n
		if cnt[i] == 0 {
			continue
		}
		samples[i].V = sumV[i] / float64(cnt[i])
		if cntI[i] > 0 {
			samples[i].I = sumI[i] / float64(cntI[i])
			samples[i].HasI = true
		}
		closed[i] = true
	}
	fillEmptyBins(samples, closed)

	samples[n-1].T = simTime
	return samples, nil
}

// fillEmptyBins interpolates values for bins no raw point landed in.
// Bins before the first populated one copy its values; bins after the
// last copy that one. Times are already on the nominal grid and stay
// untouched.
func fillEmptyBins(samples []WaveSample, closed []bool) {
	prev := -1
	for i := range samples {
		if closed[i] {
			prev = i
			continue
		}
		next := -1
		for j := i + 1; j < len(samples); j++ {
			if closed[j] {
				next = j
				break
			}
		}
		switch {
		case prev < 0 && next < 0:
			return
		case prev < 0:
			samples[i].V = samples[next].V
			samples[i].I = samples[next].I
			samples[i].HasI = samples[next].HasI
		case next < 0:
			samples[i].V = samples[prev].V
			samples[i].I = samples[prev].I
			samples[i].HasI = samples[prev].HasI
		default:
			frac := float64(i-prev) / float64(next-prev)
			samples[i].V = samples[prev].V + frac*(samples[next].V-samples[prev].V)
			if samples[prev].HasI && samples[next].HasI {
				samples[i].I = samples[prev].I + frac*(samples[next].I-samples[prev].I)
				samples[i].HasI = true
			}
		}
	}
}
