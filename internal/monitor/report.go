package monitor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// missing is how echarts marks an absent point in a series.
const missing = "-"

// WriteHTMLReport renders the recorded run as a standalone HTML page with
// one line chart for pitch and one for yaw.
func (r *SampleRecorder) WriteHTMLReport(w io.Writer) error {
	samples := r.Samples()
	flushes := r.Flushes()

	// Union of every frame that has a sample or a flush, in order.
	frames := make([]int, 0, len(samples)+len(flushes))
	seen := make(map[int]bool)
	si, fi := 0, 0
	for si < len(samples) || fi < len(flushes) {
		var f int
		if fi >= len(flushes) || (si < len(samples) && samples[si].Frame <= flushes[fi].Frame) {
			f = samples[si].Frame
			si++
		} else {
			f = flushes[fi].Frame
			fi++
		}
		if !seen[f] {
			seen[f] = true
			frames = append(frames, f)
		}
	}

	x := make([]string, len(frames))
	for i, f := range frames {
		x[i] = strconv.Itoa(f)
	}

	subtitle := fmt.Sprintf("%d samples, %d commits", len(samples), len(flushes))
	pitch := newTraceChart("Pitch", subtitle, x,
		seriesAt(frames, samples, func(s Sample) (int, float64) { return s.Frame, s.PitchDeg }),
		seriesAt(frames, flushes, func(f Flush) (int, float64) { return f.Frame, f.PitchDeg }))
	yaw := newTraceChart("Yaw", subtitle, x,
		seriesAt(frames, samples, func(s Sample) (int, float64) { return s.Frame, s.YawDeg }),
		seriesAt(frames, flushes, func(f Flush) (int, float64) { return f.Frame, f.YawDeg }))

	page := components.NewPage()
	page.AddCharts(pitch, yaw)
	return page.Render(w)
}

func newTraceChart(title, subtitle string, x []string, samples, flushes []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: title + " (deg)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("sample", samples).
		AddSeries("committed", flushes)
	return line
}

// seriesAt places each item's value at its frame's position, leaving the
// other positions missing.
func seriesAt[T any](frames []int, items []T, value func(T) (int, float64)) []opts.LineData {
	pos := make(map[int]int, len(frames))
	for i, f := range frames {
		pos[f] = i
	}
	data := make([]opts.LineData, len(frames))
	for i := range data {
		data[i] = opts.LineData{Value: missing}
	}
	for _, it := range items {
		f, v := value(it)
		if i, ok := pos[f]; ok {
			data[i] = opts.LineData{Value: v}
		}
	}
	return data
}
