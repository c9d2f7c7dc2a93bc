package charts

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/qulab/qulab/internal/modules/demos"
)

// Figure dimensions, sized for an inline notebook-style figure.
const (
	figureWidth  = 6 * vg.Inch
	figureHeight = 4 * vg.Inch
)

// RenderThermal draws the normalized Boltzmann curves overlaid on a single
// figure and saves it to path. The image format follows the file extension
// (.svg, .png, .pdf). Axis ticks are hidden and the legend keys each curve
// by its temperature index.
func RenderThermal(result demos.ThermalResult, path string) error {
	p, err := buildThermalPlot(result)
	if err != nil {
		return err
	}
	if err := p.Save(figureWidth, figureHeight, path); err != nil {
		return fmt.Errorf("failed to save thermal figure: %w", err)
	}
	return nil
}

// WriteThermalSVG renders the Boltzmann figure as SVG straight to w.
func WriteThermalSVG(result demos.ThermalResult, w io.Writer) error {
	p, err := buildThermalPlot(result)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(figureWidth, figureHeight, "svg")
	if err != nil {
		return fmt.Errorf("failed to render thermal figure: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write thermal figure: %w", err)
	}
	return nil
}

// buildThermalPlot assembles the overlaid line plot for all curves
func buildThermalPlot(result demos.ThermalResult) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Boltzmann distributions"
	p.X.Label.Text = "energy"
	p.Y.Label.Text = "weight"

	// The curve shapes are the point here, not the axis numbers, so
	// tick marks stay hidden.
	p.X.Tick.Marker = plot.ConstantTicks(nil)
	p.Y.Tick.Marker = plot.ConstantTicks(nil)
	p.Legend.Top = true

	for i, curve := range result.Curves {
		pts := make(plotter.XYs, len(curve.Weights))
		for j, w := range curve.Weights {
			pts[j].X = result.Energies[j]
			pts[j].Y = w
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to build line for T%d: %w", curve.Index, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("T%d", curve.Index), line)
	}

	return p, nil
}
