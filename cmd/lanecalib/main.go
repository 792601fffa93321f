// Command lanecalib runs lane detection over a sequence of frames while
// estimating the camera's pitch and yaw from the lane vanishing point.
//
// Frames come either from camera images sent to a lane segmentation service
// (-images with -inference-url) or from replayed model output (-masks).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/config"
	"github.com/banshee-data/lane-calibration/internal/detector"
	"github.com/banshee-data/lane-calibration/internal/journal"
	"github.com/banshee-data/lane-calibration/internal/monitor"
	"github.com/banshee-data/lane-calibration/internal/pipeline"
	"github.com/banshee-data/lane-calibration/internal/timeutil"
	"github.com/banshee-data/lane-calibration/internal/units"
	"github.com/banshee-data/lane-calibration/internal/version"
)

var (
	configPath   = flag.String("config", "", "Calibration config JSON (defaults are built in)")
	imagesGlob   = flag.String("images", "", "Glob of camera frames to process, in lexical order")
	masksDir     = flag.String("masks", "", "Directory of recorded <frame>_left.png/<frame>_right.png masks to replay")
	inferenceURL = flag.String("inference-url", "", "Lane segmentation endpoint (overrides config)")
	journalPath  = flag.String("journal", "", "sqlite journal of committed calibrations (overrides config)")
	plotsDir     = flag.String("plots", "", "Write pitch/yaw PNG traces into this directory")
	reportPath   = flag.String("report", "", "Write an HTML calibration report to this file")
	angleUnits   = flag.String("units", units.Degrees, "Units for the printed angles (rad, deg)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("lanecalib", version.String())
		return
	}
	if !units.IsValid(*angleUnits) {
		log.Fatalf("invalid -units %q: must be one of %s", *angleUnits, units.GetValidUnitsString())
	}

	cfg := config.DefaultCalibrationConfig()
	if *configPath != "" {
		loaded, err := config.LoadCalibrationConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *inferenceURL != "" {
		cfg.InferenceURL = inferenceURL
	}
	if *journalPath != "" {
		cfg.JournalPath = journalPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := calibrate(ctx, cfg, os.Stdout)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// calibrate runs one session and writes its summary to out. An interrupted
// run is not an error: whatever was processed is still summarised, plotted
// and reported.
func calibrate(ctx context.Context, cfg *config.CalibrationConfig, out io.Writer) error {
	det, images, err := frameSource(ctx, cfg)
	if err != nil {
		return err
	}

	recorder := monitor.NewSampleRecorder()
	observers := []pipeline.Observer{recorder}
	if p := cfg.GetJournalPath(); p != "" {
		j, err := journal.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer j.Close()
		observers = append(observers, j)
	}

	lanes, err := pipeline.New(pipeline.ConfigFromCalibration(cfg), pipeline.GeometryFromCalibration(cfg), det, observers...)
	if err != nil {
		return fmt.Errorf("failed to create calibrated lane detector: %w", err)
	}

	var clock timeutil.Clock = timeutil.RealClock{}
	start := clock.Now()
	if err := run(ctx, lanes, images); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		log.Printf("interrupted, stopping after %d frames", lanes.Stats().Frames)
	}

	st := lanes.Stats()
	log.Printf("processed %d frames in %v: %d samples, %d calibrations, %d insufficient, %d poor fit, %d parallel",
		st.Frames, clock.Since(start).Round(time.Millisecond), st.Samples, st.Flushes, st.InsufficientEvidence, st.PoorFit, st.Parallel)
	fmt.Fprintln(out, summaryLine(lanes.State(), *angleUnits))

	if *plotsDir != "" {
		n, err := recorder.GeneratePlots(*plotsDir)
		if err != nil {
			return fmt.Errorf("failed to generate plots: %w", err)
		}
		log.Printf("wrote %d plots to %s", n, *plotsDir)
	}
	if *reportPath != "" {
		if err := writeReport(recorder, *reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// summaryLine formats the committed angles in unit (rad or deg).
func summaryLine(state calibration.State, unit string) string {
	if !state.Success {
		return "calibration not committed"
	}
	pitch := units.ConvertAngle(units.DegToRad(state.EstimatedPitchDeg), unit)
	yaw := units.ConvertAngle(units.DegToRad(state.EstimatedYawDeg), unit)
	return fmt.Sprintf("pitch_%s=%v yaw_%s=%v", unit, pitch, unit, yaw)
}

// frameSource picks the lane detector and the image list. Replay needs no
// images; nil frames are passed to the pipeline until the replay is done.
func frameSource(ctx context.Context, cfg *config.CalibrationConfig) (detector.LaneDetector, []string, error) {
	if *masksDir != "" {
		det, err := detector.NewReplayDetector(os.DirFS(*masksDir), ".")
		if err != nil {
			return nil, nil, err
		}
		log.Printf("replaying %d recorded frames from %s", len(det.Frames()), *masksDir)
		return det, nil, nil
	}

	if cfg.GetInferenceURL() == "" {
		return nil, nil, errors.New("either -masks or an inference URL is required")
	}
	if *imagesGlob == "" {
		return nil, nil, errors.New("-images is required with an inference URL")
	}
	images, err := filepath.Glob(*imagesGlob)
	if err != nil {
		return nil, nil, fmt.Errorf("bad -images pattern: %w", err)
	}
	if len(images) == 0 {
		return nil, nil, fmt.Errorf("no images match %s", *imagesGlob)
	}
	sort.Strings(images)

	det := detector.NewHTTPDetector(cfg.GetInferenceURL(), cfg.GetInferenceTimeout())
	if err := det.CheckHealth(ctx); err != nil {
		log.Printf("warning: inference service health check failed: %v", err)
	}
	return det, images, nil
}

func run(ctx context.Context, lanes *pipeline.CalibratedLaneDetector, images []string) error {
	if images == nil {
		for {
			if _, err := lanes.RunAndViz(ctx, nil); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}

	for _, path := range images {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, _, err := lanes.RunPath(ctx, path); err != nil {
			if errors.Is(err, calibration.ErrSingularIntrinsicMatrix) || errors.Is(err, context.Canceled) {
				return err
			}
			log.Printf("frame %s skipped: %v", path, err)
		}
	}
	return nil
}

func writeReport(r *monitor.SampleRecorder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteHTMLReport(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
