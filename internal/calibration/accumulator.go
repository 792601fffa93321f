package calibration

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lane-calibration/internal/units"
)

// DefaultBatchSize is the history length that must be exceeded to commit.
const DefaultBatchSize = 50

// FlushEvent describes one committed calibration.
type FlushEvent struct {
	Index    int // 1-based flush count
	Samples  int // samples averaged
	PitchDeg float64
	YawDeg   float64
}

// State is a snapshot of the accumulator.
type State struct {
	HistoryLen        int
	EstimatedPitchDeg float64
	EstimatedYawDeg   float64
	Success           bool
	Flushes           int
}

// Accumulator collects per-frame angle samples and commits their mean once
// the history grows past the batch size.
//
// The commit fires on the sample that makes the history strictly longer than
// the batch size, so with the default of 50 the 51st sample triggers a flush
// over all 51 samples. Success never reverts to false once set.
type Accumulator struct {
	mu        sync.Mutex
	batchSize int
	history   []AngleSample
	pitchDeg  float64
	yawDeg    float64
	success   bool
	flushes   int
}

// NewAccumulator creates an accumulator. batchSize < 1 selects DefaultBatchSize.
func NewAccumulator(batchSize int) *Accumulator {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Accumulator{
		batchSize: batchSize,
		history:   make([]AngleSample, 0, batchSize+1),
	}
}

// AddSample appends s. When the history exceeds the batch size the unweighted
// mean of the whole history is committed in degrees, the history is cleared
// and the committed event is returned with flushed=true.
//
// The append and the conditional commit happen under one lock, so concurrent
// callers can never both flush the same window.
func (a *Accumulator) AddSample(s AngleSample) (ev FlushEvent, flushed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, s)
	if len(a.history) <= a.batchSize {
		return FlushEvent{}, false
	}

	pitches := make([]float64, len(a.history))
	yaws := make([]float64, len(a.history))
	for i, h := range a.history {
		pitches[i] = h.Pitch
		yaws[i] = h.Yaw
	}

	a.pitchDeg = units.RadToDeg(stat.Mean(pitches, nil))
	a.yawDeg = units.RadToDeg(stat.Mean(yaws, nil))
	a.success = true
	a.flushes++

	ev = FlushEvent{
		Index:    a.flushes,
		Samples:  len(a.history),
		PitchDeg: a.pitchDeg,
		YawDeg:   a.yawDeg,
	}
	a.history = a.history[:0]
	return ev, true
}

// Reset discards pending samples. Committed estimates and Success are kept.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = a.history[:0]
}

// State returns a snapshot of the accumulator.
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		HistoryLen:        len(a.history),
		EstimatedPitchDeg: a.pitchDeg,
		EstimatedYawDeg:   a.yawDeg,
		Success:           a.success,
		Flushes:           a.flushes,
	}
}

// Success reports whether at least one calibration has been committed.
func (a *Accumulator) Success() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.success
}

// BatchSize returns the configured batch size.
func (a *Accumulator) BatchSize() int { return a.batchSize }

// History returns a copy of the pending samples.
func (a *Accumulator) History() []AngleSample {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AngleSample, len(a.history))
	copy(out, a.history)
	return out
}
