package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/config"
	"github.com/banshee-data/lane-calibration/internal/journal"
	"github.com/banshee-data/lane-calibration/internal/monitor"
	"github.com/banshee-data/lane-calibration/internal/monitoring"
	"github.com/banshee-data/lane-calibration/internal/pipeline"
	"github.com/banshee-data/lane-calibration/internal/testutil"
	"github.com/banshee-data/lane-calibration/internal/units"
)

func writeMask(t *testing.T, path string, w, h int, data []float64) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, c := range data {
		img.SetGray(i%w, i/w, color.Gray{Y: uint8(c * 255)})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func smallConfig(t *testing.T) *config.CalibrationConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calib.json")
	body := `{"calib_cut_v": 20, "image_width": 64, "image_height": 48, "batch_size": 2}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	cfg, err := config.LoadCalibrationConfig(path)
	require.NoError(t, err)
	return cfg
}

func quiet(t *testing.T) {
	t.Helper()
	logf := monitoring.Logf
	monitoring.SetLogger(nil)
	monitoring.SetConsole(nil)
	t.Cleanup(func() {
		monitoring.SetLogger(logf)
		monitoring.SetConsole(os.Stdout)
	})
}

// setFlag points a flag variable at v for the duration of the test.
func setFlag(t *testing.T, p *string, v string) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

// replayDir writes n frames of a synthetic lane pair and selects it as -masks.
func replayDir(t *testing.T, n int) {
	t.Helper()
	dir := t.TempDir()
	left, right := testutil.LaneMasks(64, 48, 20, 32, 16)
	for i := 0; i < n; i++ {
		writeMask(t, filepath.Join(dir, fmt.Sprintf("%03d_left.png", i)), 64, 48, left)
		writeMask(t, filepath.Join(dir, fmt.Sprintf("%03d_right.png", i)), 64, 48, right)
	}
	setFlag(t, masksDir, dir)
}

func TestReplayRun(t *testing.T) {
	quiet(t)
	replayDir(t, 4)

	cfg := smallConfig(t)
	ctx := context.Background()
	det, images, err := frameSource(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, images)

	rec := monitor.NewSampleRecorder()
	lanes, err := pipeline.New(pipeline.ConfigFromCalibration(cfg), pipeline.GeometryFromCalibration(cfg), det, rec)
	require.NoError(t, err)

	require.NoError(t, run(ctx, lanes, images))
	assert.Equal(t, 4, lanes.Stats().Frames)
	assert.True(t, lanes.Success())
	assert.Len(t, rec.Samples(), 4)

	report := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, writeReport(rec, report))
	b, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "Pitch"))
}

func TestCalibrate_CompletesReplay(t *testing.T) {
	quiet(t)
	replayDir(t, 4)
	report := filepath.Join(t.TempDir(), "report.html")
	setFlag(t, reportPath, report)
	setFlag(t, angleUnits, units.Degrees)

	var out bytes.Buffer
	require.NoError(t, calibrate(context.Background(), smallConfig(t), &out))
	assert.True(t, strings.HasPrefix(out.String(), "pitch_deg="), "got %q", out.String())
	_, err := os.Stat(report)
	assert.NoError(t, err)
}

func TestCalibrate_InterruptIsCleanStop(t *testing.T) {
	quiet(t)
	replayDir(t, 4)
	report := filepath.Join(t.TempDir(), "report.html")
	setFlag(t, reportPath, report)

	cfg := smallConfig(t)
	jpath := filepath.Join(t.TempDir(), "journal.db")
	cfg.JournalPath = &jpath

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, calibrate(ctx, cfg, &out))
	assert.Equal(t, "calibration not committed\n", out.String())

	// The report is still written and the journal was closed cleanly.
	_, err := os.Stat(report)
	assert.NoError(t, err)
	j, err := journal.Open(jpath)
	require.NoError(t, err)
	require.NoError(t, j.Close())
}

func TestRun_CancelledReplayReportsCancellation(t *testing.T) {
	quiet(t)
	replayDir(t, 4)
	cfg := smallConfig(t)

	det, images, err := frameSource(context.Background(), cfg)
	require.NoError(t, err)
	lanes, err := pipeline.New(pipeline.ConfigFromCalibration(cfg), pipeline.GeometryFromCalibration(cfg), det)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = run(ctx, lanes, images)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, lanes.Stats().Frames)
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t, "calibration not committed", summaryLine(calibration.State{}, units.Degrees))

	state := calibration.State{Success: true, EstimatedPitchDeg: -2, EstimatedYawDeg: 90}
	tests := []struct {
		unit      string
		wantPitch float64
		wantYaw   float64
	}{
		{units.Degrees, -2, 90},
		{units.Radians, -2 * math.Pi / 180, math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			var pitch, yaw float64
			format := fmt.Sprintf("pitch_%s=%%g yaw_%s=%%g", tt.unit, tt.unit)
			_, err := fmt.Sscanf(summaryLine(state, tt.unit), format, &pitch, &yaw)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPitch, pitch, 1e-12)
			assert.InDelta(t, tt.wantYaw, yaw, 1e-12)
		})
	}
}

func TestFrameSource_RequiresInput(t *testing.T) {
	setFlag(t, masksDir, "")

	_, _, err := frameSource(context.Background(), config.EmptyCalibrationConfig())
	assert.Error(t, err)
}
