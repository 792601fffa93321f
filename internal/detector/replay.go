package detector

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/banshee-data/lane-calibration/internal/imageio"
)

const (
	leftSuffix  = "_left.png"
	rightSuffix = "_right.png"
)

// ReplayDetector returns recorded lane maps in frame order instead of running
// a model. Frames are <stem>_left.png / <stem>_right.png pairs in dir, sorted
// by stem. The frame passed to Detect is ignored. io.EOF is returned once
// every recorded frame has been replayed.
type ReplayDetector struct {
	mu    sync.Mutex
	fsys  fs.FS
	dir   string
	stems []string
	next  int
}

// NewReplayDetector indexes the recorded frames in dir.
func NewReplayDetector(fsys fs.FS, dir string) (*ReplayDetector, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}

	have := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		have[e.Name()] = true
	}

	var stems []string
	for name := range have {
		stem, ok := strings.CutSuffix(name, leftSuffix)
		if !ok {
			continue
		}
		if !have[stem+rightSuffix] {
			return nil, fmt.Errorf("replay frame %q has no right mask", stem)
		}
		stems = append(stems, stem)
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("no recorded frames in %s", dir)
	}
	sort.Strings(stems)

	return &ReplayDetector{fsys: fsys, dir: dir, stems: stems}, nil
}

// Frames returns the stems in replay order.
func (d *ReplayDetector) Frames() []string {
	out := make([]string, len(d.stems))
	copy(out, d.stems)
	return out
}

// Detect returns the next recorded frame.
func (d *ReplayDetector) Detect(ctx context.Context, _ image.Image) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}

	d.mu.Lock()
	if d.next >= len(d.stems) {
		d.mu.Unlock()
		return Detection{}, io.EOF
	}
	stem := d.stems[d.next]
	d.next++
	d.mu.Unlock()

	left, err := imageio.LoadFS(d.fsys, path.Join(d.dir, stem+leftSuffix))
	if err != nil {
		return Detection{}, err
	}
	right, err := imageio.LoadFS(d.fsys, path.Join(d.dir, stem+rightSuffix))
	if err != nil {
		return Detection{}, err
	}
	if left.Bounds().Size() != right.Bounds().Size() {
		return Detection{}, fmt.Errorf("replay frame %q: left and right masks differ in size", stem)
	}

	return Detection{
		Raw:   []byte(stem),
		Left:  MaskFromImage(left),
		Right: MaskFromImage(right),
	}, nil
}
