package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hobbycircuits/regsim/pkg/regulation"
)

// WritePlots renders the line-sweep curve and the transient waveform as PNG
// files under dir. Metrics whose data is unavailable are skipped.
func WritePlots(dir string, m regulation.Metrics) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating plot dir: %w", err)
	}

	if len(m.LineInputs) > 0 {
		if err := linePlot(filepath.Join(dir, "line_sweep.png"), m); err != nil {
			return err
		}
	}
	if len(m.TranTimes) > 0 {
		if err := tranPlot(filepath.Join(dir, "transient.png"), m); err != nil {
			return err
		}
	}

	return nil
}

func linePlot(path string, m regulation.Metrics) error {
	p := plot.New()
	p.Title.Text = "Line sweep (no load)"
	p.X.Label.Text = "Input voltage (V)"
	p.Y.Label.Text = "Output voltage (V)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(m.LineInputs))
	for i := range m.LineInputs {
		pts[i].X = m.LineInputs[i]
		pts[i].Y = m.LineOutputs[i]
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("building line-sweep plot: %w", err)
	}
	p.Add(line, points)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func tranPlot(path string, m regulation.Metrics) error {
	p := plot.New()
	p.Title.Text = "Output transient"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Output voltage (V)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(m.TranTimes))
	for i := range m.TranTimes {
		pts[i].X = m.TranTimes[i]
		pts[i].Y = m.TranOutputs[i]
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building transient plot: %w", err)
	}
	p.Add(line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
