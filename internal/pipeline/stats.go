package pipeline

// Stats counts per-frame outcomes since construction.
type Stats struct {
	Frames               int
	Samples              int
	Flushes              int
	InsufficientEvidence int // a lane mask had no pixel above threshold
	PoorFit              int // a lane line residual was too large
	Parallel             int // lane lines did not intersect
	GeometryErrors       int // a committed calibration produced an unusable grid
	LeftPolys            int
	RightPolys           int
}

func (s *Stats) countFit(r fitOutcome) {
	switch r {
	case fitMissing:
		s.InsufficientEvidence++
	case fitPoor:
		s.PoorFit++
	}
}
