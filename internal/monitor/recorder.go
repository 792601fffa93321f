// Package monitor records per-frame calibration samples and renders them as
// PNG traces (gonum/plot) and an HTML report (go-echarts) after a run.
package monitor

import (
	"sort"
	"sync"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/units"
)

// Sample is one per-frame angle estimate in degrees.
type Sample struct {
	Frame    int
	PitchDeg float64
	YawDeg   float64
}

// Flush is one committed calibration and the frame that triggered it.
type Flush struct {
	Frame int
	calibration.FlushEvent
}

// SampleRecorder collects samples and flushes. It satisfies the pipeline
// observer interface and is safe for concurrent use.
type SampleRecorder struct {
	mu      sync.Mutex
	samples []Sample
	flushes []Flush
}

// NewSampleRecorder creates an empty recorder.
func NewSampleRecorder() *SampleRecorder {
	return &SampleRecorder{}
}

// ObserveSample records the estimate for frame.
func (r *SampleRecorder) ObserveSample(frame int, s calibration.AngleSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, Sample{
		Frame:    frame,
		PitchDeg: units.RadToDeg(s.Pitch),
		YawDeg:   units.RadToDeg(s.Yaw),
	})
}

// ObserveFlush records a committed calibration.
func (r *SampleRecorder) ObserveFlush(frame int, ev calibration.FlushEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, Flush{Frame: frame, FlushEvent: ev})
}

// Samples returns the recorded samples ordered by frame.
func (r *SampleRecorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}

// Flushes returns the recorded flushes ordered by frame.
func (r *SampleRecorder) Flushes() []Flush {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Flush, len(r.flushes))
	copy(out, r.flushes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}
