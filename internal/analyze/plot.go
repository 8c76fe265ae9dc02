package analyze

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Plot renders CPU usage and resident memory over the sample index as two
// stacked charts and writes them to path as PNG.
func Plot(stats *PerfStats, title, path string) error {
	if stats == nil || (len(stats.CPU) == 0 && len(stats.RSS) == 0) {
		return errors.New("no samples to plot")
	}

	cpu, err := linePlot(title+" CPU", "CPU %", cpuPoints(stats))
	if err != nil {
		return err
	}
	mem, err := linePlot(title+" memory", "RSS GB", rssPoints(stats))
	if err != nil {
		return err
	}

	const width, height = 8 * vg.Inch, 8 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2,
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: 3 * vg.Millimeter,
	}
	plots := [][]*plot.Plot{{cpu}, {mem}}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func linePlot(title, ylabel string, pts plotter.XYs) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sample"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	if len(pts) == 0 {
		return p, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("plotting %s: %w", ylabel, err)
	}
	p.Add(line)
	return p, nil
}

func cpuPoints(stats *PerfStats) plotter.XYs {
	pts := make(plotter.XYs, len(stats.CPU))
	for i, v := range stats.CPU {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}

func rssPoints(stats *PerfStats) plotter.XYs {
	pts := make(plotter.XYs, len(stats.RSS))
	for i, v := range stats.RSS {
		pts[i].X = float64(i)
		pts[i].Y = float64(v) / kbPerGB
	}
	return pts
}
