package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	sampleColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	flushColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// GeneratePlots writes pitch.png and yaw.png into dir, showing every per-frame
// sample as a line and every committed calibration as a marker.
// Returns the number of plots generated and any error.
func (r *SampleRecorder) GeneratePlots(dir string) (int, error) {
	samples := r.Samples()
	flushes := r.Flushes()
	if len(samples) == 0 && len(flushes) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	traces := []struct {
		name   string
		label  string
		sample func(Sample) float64
		flush  func(Flush) float64
	}{
		{"pitch", "Pitch (deg)", func(s Sample) float64 { return s.PitchDeg }, func(f Flush) float64 { return f.PitchDeg }},
		{"yaw", "Yaw (deg)", func(s Sample) float64 { return s.YawDeg }, func(f Flush) float64 { return f.YawDeg }},
	}

	count := 0
	for _, tr := range traces {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Camera %s per frame", tr.name)
		p.X.Label.Text = "Frame"
		p.Y.Label.Text = tr.label

		if len(samples) > 0 {
			pts := make(plotter.XYs, len(samples))
			for i, s := range samples {
				pts[i] = plotter.XY{X: float64(s.Frame), Y: tr.sample(s)}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return count, err
			}
			line.Color = sampleColor
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add("sample", line)
		}

		if len(flushes) > 0 {
			pts := make(plotter.XYs, len(flushes))
			for i, f := range flushes {
				pts[i] = plotter.XY{X: float64(f.Frame), Y: tr.flush(f)}
			}
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return count, err
			}
			sc.GlyphStyle.Color = flushColor
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(3)
			p.Add(sc)
			p.Legend.Add("committed", sc)
		}

		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		file := filepath.Join(dir, tr.name+".png")
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return count, fmt.Errorf("save %s plot: %w", tr.name, err)
		}
		count++
	}
	return count, nil
}
