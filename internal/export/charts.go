package export

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/pidlab/internal/dynamo"
)

var (
	targetColor   = color.RGBA{R: 0xff, G: 0x66, B: 0x66, A: 0xff}
	positionColor = color.RGBA{R: 0x33, G: 0x99, B: 0xff, A: 0xff}
	pColor        = color.RGBA{R: 0xff, G: 0x99, B: 0x33, A: 0xff}
	iColor        = color.RGBA{R: 0x66, G: 0xcc, B: 0x66, A: 0xff}
	dColor        = color.RGBA{R: 0xcc, G: 0x66, B: 0xff, A: 0xff}
	outputColor   = color.RGBA{A: 0xff}
)

type series struct {
	name  string
	color color.Color
	value func(dynamo.Sample) float64
}

// SaveCharts renders position.png, error.png and terms.png into dir.
func SaveCharts(dir string, samples []dynamo.Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to chart")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	charts := []struct {
		file, title, ylabel string
		lines               []series
	}{
		{"position.png", "Cart position", "position", []series{
			{"target", targetColor, func(s dynamo.Sample) float64 { return s.Target }},
			{"position", positionColor, func(s dynamo.Sample) float64 { return s.Position }},
		}},
		{"error.png", "Tracking error", "target - position", []series{
			{"error", targetColor, func(s dynamo.Sample) float64 { return s.Error }},
		}},
		{"terms.png", "Controller terms", "force", []series{
			{"P", pColor, func(s dynamo.Sample) float64 { return s.Terms.P }},
			{"I", iColor, func(s dynamo.Sample) float64 { return s.Terms.I }},
			{"D", dColor, func(s dynamo.Sample) float64 { return s.Terms.D }},
			{"output", outputColor, func(s dynamo.Sample) float64 { return s.Terms.Output }},
		}},
	}

	for _, c := range charts {
		p, err := linePlot(c.title, c.ylabel, samples, c.lines)
		if err != nil {
			return fmt.Errorf("%s: %w", c.file, err)
		}
		if err := savePlotPNG(p, 8.0, 4.5, filepath.Join(dir, c.file)); err != nil {
			return err
		}
	}
	return nil
}

func linePlot(title, ylabel string, samples []dynamo.Sample, lines []series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for _, l := range lines {
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i].X = s.Time
			pts[i].Y = l.value(s)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = l.color
		p.Add(line)
		if len(lines) > 1 {
			p.Legend.Add(l.name, line)
		}
	}
	return p, nil
}

func savePlotPNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	w := vg.Length(widthIn) * vg.Inch
	h := vg.Length(heightIn) * vg.Inch

	c := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
