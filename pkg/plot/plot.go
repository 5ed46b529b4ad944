// Package plot renders the extracted curves of a model as an HTML
// page of interactive charts, one file per analyzed model.
package plot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/pkg/errors"

	"spice2ibis/internal/consts"
	"spice2ibis/pkg/ibis"
	"spice2ibis/pkg/unit"
)

var cornerNames = [consts.NumCorners]string{"typ", "min", "max"}

func newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithAnimation(true),
	)
	return line
}

// viChart plots one VI table, one series per corner that has data.
func viChart(name string, tbl *ibis.VITable) *charts.Line {
	line := newLine(name, "current vs. voltage, per corner")
	xs := make([]string, len(tbl.Entries))
	for i, e := range tbl.Entries {
		xs[i] = unit.Format(e.V)
	}
	line.SetXAxis(xs)
	for c := 0; c < consts.NumCorners; c++ {
		items := make([]opts.LineData, 0, len(tbl.Entries))
		any := false
		for _, e := range tbl.Entries {
			v := e.I.Corner(c)
			if unit.IsNA(v) {
				items = append(items, opts.LineData{Value: nil})
				continue
			}
			any = true
			items = append(items, opts.LineData{Value: v})
		}
		if any {
			line.AddSeries(cornerNames[c], items)
		}
	}
	return line
}

// waveChart plots one fixture's transient trace.
func waveChart(name string, w *ibis.Waveform) *charts.Line {
	sub := fmt.Sprintf("R_fixture=%s V_fixture=%s",
		unit.Format(w.RFixture), unit.Format(w.VFixture))
	line := newLine(name, sub)
	xs := make([]string, len(w.Table.Entries))
	for i, e := range w.Table.Entries {
		xs[i] = fmt.Sprintf("%.3gn", e.T*1e9)
	}
	line.SetXAxis(xs)
	for c := 0; c < consts.NumCorners; c++ {
		items := make([]opts.LineData, 0, len(w.Table.Entries))
		any := false
		for _, e := range w.Table.Entries {
			v := e.V.Corner(c)
			if unit.IsNA(v) {
				items = append(items, opts.LineData{Value: nil})
				continue
			}
			any = true
			items = append(items, opts.LineData{Value: v})
		}
		if any {
			line.AddSeries(cornerNames[c], items)
		}
	}
	return line
}

// RenderModel writes one HTML page holding every populated curve of m.
func RenderModel(w io.Writer, m *ibis.Model) error {
	page := components.NewPage()
	page.PageTitle = m.Name
	n := 0
	for _, t := range []struct {
		name string
		tbl  *ibis.VITable
	}{
		{"Pulldown", m.Pulldown},
		{"Pullup", m.Pullup},
		{"GND Clamp", m.GndClamp},
		{"POWER Clamp", m.PowerClamp},
	} {
		if t.tbl == nil || len(t.tbl.Entries) == 0 {
			continue
		}
		page.AddCharts(viChart(m.Name+" "+t.name, t.tbl))
		n++
	}
	for i, wf := range m.RisingWaves {
		if wf.Table == nil || len(wf.Table.Entries) == 0 {
			continue
		}
		page.AddCharts(waveChart(fmt.Sprintf("%s Rising Waveform %d", m.Name, i+1), wf))
		n++
	}
	for i, wf := range m.FallingWaves {
		if wf.Table == nil || len(wf.Table.Entries) == 0 {
			continue
		}
		page.AddCharts(waveChart(fmt.Sprintf("%s Falling Waveform %d", m.Name, i+1), wf))
		n++
	}
	if n == 0 {
		return errors.Errorf("model %s has no curves to plot", m.Name)
	}
	return page.Render(w)
}

// WriteAll renders every analyzed model of the document into dir, one
// <model>.html per model.
func WriteAll(dir string, top *ibis.TOP) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "plot dir")
	}
	for _, m := range top.Models {
		if !m.Analyzed() {
			continue
		}
		path := filepath.Join(dir, m.Name+".html")
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "plot %s", m.Name)
		}
		err = RenderModel(f, m)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "plot %s", m.Name)
		}
	}
	return nil
}
