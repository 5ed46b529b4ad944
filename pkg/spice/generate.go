package spice

import (
	"context"

	"github.com/golang/glog"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

// skipCorner reports whether a corner has no usable supply bias. Such
// corners are skipped and their columns stay NA in the written tables.
func skipCorner(j *Job, corner int) bool {
	if corner == consts.Typ {
		return false
	}
	return j.Sweep.Vcc.AnySet() && unit.IsNA(j.Sweep.Vcc.Corner(corner))
}

// GenerateVI runs one DC curve across the corners and returns the table
// plus the number of corner failures. The typ corner defines the voltage
// column; if it fails, the whole curve is unusable and the table comes
// back empty.
func GenerateVI(ctx context.Context, env *Env, j *Job) (*ibis.VITable, int) {
	tbl := ibis.NewVITable(0)
	errs := 0
	for corner := 0; corner < consts.NumCorners; corner++ {
		if skipCorner(j, corner) {
			continue
		}
		if err := ctx.Err(); err != nil {
			glog.Warningf("%s pin %s: canceled: %v", j.Curve, j.Pin.Name, err)
			return tbl, errs + 1
		}
		out, err := runCorner(ctx, env, j, corner)
		if err != nil {
			glog.Errorf("%v", err)
			errs++
			continue
		}
		if err := ParseVI(env.Dialect, out, corner, tbl); err != nil {
			glog.Errorf("%s pin %s (%s): %v", j.Curve, j.Pin.Name, cornerName(corner), err)
			errs++
		}
		cleanupFiles(env, j, corner)
	}
	return tbl, errs
}

// GenerateRamp runs the ramp transient across the corners and returns the
// raw dV and dt per corner. Derating is the caller's concern. A corner
// whose simulation fails, or whose output cannot be parsed, falls back on
// a mock output file when one is available, with one parse retry.
func GenerateRamp(ctx context.Context, env *Env, j *Job) (dv, dt ibis.TypMinMax, errs int) {
	dv, dt = ibis.NewTMM(), ibis.NewTMM()
	for corner := 0; corner < consts.NumCorners; corner++ {
		if skipCorner(j, corner) {
			continue
		}
		if err := ctx.Err(); err != nil {
			glog.Warningf("%s pin %s: canceled: %v", j.Curve, j.Pin.Name, err)
			return dv, dt, errs + 1
		}
		out, usedMock, ok := transientOutput(ctx, env, j, corner)
		if !ok {
			errs++
			continue
		}
		d, t, err := ParseRamp(env.Dialect, out)
		if err != nil && !usedMock {
			if mock, found := mockFallback(env, j, corner); found {
				d, t, err = ParseRamp(env.Dialect, mock)
			}
		}
		if err != nil {
			glog.Errorf("%s pin %s (%s): %v", j.Curve, j.Pin.Name, cornerName(corner), err)
			errs++
			continue
		}
		dv.SetCorner(corner, d)
		dt.SetCorner(corner, t)
		cleanupFiles(env, j, corner)
	}
	return dv, dt, errs
}

// transientOutput runs one transient corner and resolves the output file
// to parse, consulting the mock directory when the run itself fails.
func transientOutput(ctx context.Context, env *Env, j *Job, corner int) (out string, usedMock, ok bool) {
	out, err := runCorner(ctx, env, j, corner)
	if err == nil {
		return out, false, true
	}
	glog.Errorf("%v", err)
	mock, found := mockFallback(env, j, corner)
	if !found {
		return "", false, false
	}
	return mock, true, true
}

// GenerateWave runs the waveform transient across the corners and bins
// each corner into the shared fixed-length table. Time bins line up
// across corners, so min and max traces slot into the typ table by
// index.
func GenerateWave(ctx context.Context, env *Env, j *Job) (*ibis.WaveTable, int) {
	tbl := ibis.NewWaveTable(0)
	errs := 0
	for corner := 0; corner < consts.NumCorners; corner++ {
		if skipCorner(j, corner) {
			continue
		}
		if err := ctx.Err(); err != nil {
			glog.Warningf("%s pin %s: canceled: %v", j.Curve, j.Pin.Name, err)
			return tbl, errs + 1
		}
		out, usedMock, ok := transientOutput(ctx, env, j, corner)
		if !ok {
			errs++
			continue
		}
		samples, err := ParseWave(env.Dialect, out, j.Model.SimTime)
		if err != nil && !usedMock {
			if mock, found := mockFallback(env, j, corner); found {
				samples, err = ParseWave(env.Dialect, mock, j.Model.SimTime)
			}
		}
		if err != nil {
			glog.Errorf("%s pin %s (%s): %v", j.Curve, j.Pin.Name, cornerName(corner), err)
			errs++
			continue
		}
		mergeWave(tbl, samples, corner)
		cleanupFiles(env, j, corner)
	}
	return tbl, errs
}

func mergeWave(tbl *ibis.WaveTable, samples []WaveSample, corner int) {
	if len(tbl.Entries) == 0 {
		tbl.Entries = make([]ibis.WaveEntry, len(samples))
		for i := range tbl.Entries {
			tbl.Entries[i].V = ibis.NewTMM()
			tbl.Entries[i].I = ibis.NewTMM()
			tbl.Entries[i].T = samples[i].T
		}
		tbl.SetSize()
	}
	n := len(samples)
	if len(tbl.Entries) < n {
		n = len(tbl.Entries)
	}
	for i := 0; i < n; i++ {
		tbl.Entries[i].V.SetCorner(corner, samples[i].V)
		if samples[i].HasI {
			tbl.Entries[i].I.SetCorner(corner, samples[i].I)
		}
	}
}
