package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical calibration defaults file.
const DefaultConfigPath = "config/calibration.defaults.json"

// CalibrationConfig holds the tunables for lane-based camera self-calibration.
// Every field is optional; the Get* accessors fall back to production defaults
// so that partial JSON files are safe.
type CalibrationConfig struct {
	// Line fitting
	CalibCutV           *int     `json:"calib_cut_v,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	MaxMeanResidual     *float64 `json:"max_mean_residual,omitempty"` // squared pixels

	// Accumulation
	BatchSize       *int     `json:"batch_size,omitempty"`
	ParallelEpsilon *float64 `json:"parallel_epsilon,omitempty"`

	// Ground projection
	GridDistanceM *float64 `json:"grid_distance_m,omitempty"`

	// Camera geometry
	CameraHeightM  *float64 `json:"camera_height_m,omitempty"`
	CameraRollDeg  *float64 `json:"camera_roll_deg,omitempty"`
	FieldOfViewDeg *float64 `json:"field_of_view_deg,omitempty"`
	ImageWidth     *int     `json:"image_width,omitempty"`
	ImageHeight    *int     `json:"image_height,omitempty"`

	// Collaborators
	InferenceURL     *string `json:"inference_url,omitempty"`
	InferenceTimeout *string `json:"inference_timeout,omitempty"` // duration string like "5s"
	JournalPath      *string `json:"journal_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCalibrationConfig returns a CalibrationConfig with all fields unset.
func EmptyCalibrationConfig() *CalibrationConfig {
	return &CalibrationConfig{}
}

// DefaultCalibrationConfig returns a config with every field populated from the
// built-in defaults.
func DefaultCalibrationConfig() *CalibrationConfig {
	empty := EmptyCalibrationConfig()
	return &CalibrationConfig{
		CalibCutV:           ptrInt(empty.GetCalibCutV()),
		ConfidenceThreshold: ptrFloat64(empty.GetConfidenceThreshold()),
		MaxMeanResidual:     ptrFloat64(empty.GetMaxMeanResidual()),
		BatchSize:           ptrInt(empty.GetBatchSize()),
		ParallelEpsilon:     ptrFloat64(empty.GetParallelEpsilon()),
		GridDistanceM:       ptrFloat64(empty.GetGridDistanceM()),
		CameraHeightM:       ptrFloat64(empty.GetCameraHeightM()),
		CameraRollDeg:       ptrFloat64(empty.GetCameraRollDeg()),
		FieldOfViewDeg:      ptrFloat64(empty.GetFieldOfViewDeg()),
		ImageWidth:          ptrInt(empty.GetImageWidth()),
		ImageHeight:         ptrInt(empty.GetImageHeight()),
		InferenceTimeout:    ptrString(empty.GetInferenceTimeout().String()),
	}
}

// LoadCalibrationConfig loads a CalibrationConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadCalibrationConfig(path string) (*CalibrationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCalibrationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *CalibrationConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCalibrationConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *CalibrationConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold >= 1 {
			return fmt.Errorf("confidence_threshold must be in [0, 1), got %f", *c.ConfidenceThreshold)
		}
	}

	if c.MaxMeanResidual != nil && *c.MaxMeanResidual <= 0 {
		return fmt.Errorf("max_mean_residual must be positive, got %f", *c.MaxMeanResidual)
	}

	if c.BatchSize != nil && *c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", *c.BatchSize)
	}

	if c.ParallelEpsilon != nil && *c.ParallelEpsilon < 0 {
		return fmt.Errorf("parallel_epsilon must be non-negative, got %f", *c.ParallelEpsilon)
	}

	if c.GridDistanceM != nil && *c.GridDistanceM <= 0 {
		return fmt.Errorf("grid_distance_m must be positive, got %f", *c.GridDistanceM)
	}

	if c.CameraHeightM != nil && *c.CameraHeightM <= 0 {
		return fmt.Errorf("camera_height_m must be positive, got %f", *c.CameraHeightM)
	}

	if c.FieldOfViewDeg != nil {
		if *c.FieldOfViewDeg <= 0 || *c.FieldOfViewDeg >= 180 {
			return fmt.Errorf("field_of_view_deg must be in (0, 180), got %f", *c.FieldOfViewDeg)
		}
	}

	if c.ImageWidth != nil && *c.ImageWidth <= 0 {
		return fmt.Errorf("image_width must be positive, got %d", *c.ImageWidth)
	}
	if c.ImageHeight != nil && *c.ImageHeight <= 0 {
		return fmt.Errorf("image_height must be positive, got %d", *c.ImageHeight)
	}

	// calib_cut_v must leave at least one row to fit.
	if c.CalibCutV != nil {
		if *c.CalibCutV < 0 || *c.CalibCutV >= c.GetImageHeight() {
			return fmt.Errorf("calib_cut_v must be in [0, %d), got %d", c.GetImageHeight(), *c.CalibCutV)
		}
	}

	if c.InferenceTimeout != nil && *c.InferenceTimeout != "" {
		if _, err := time.ParseDuration(*c.InferenceTimeout); err != nil {
			return fmt.Errorf("invalid inference_timeout '%s': %w", *c.InferenceTimeout, err)
		}
	}

	return nil
}

// GetCalibCutV returns the first image row used for line fitting.
func (c *CalibrationConfig) GetCalibCutV() int {
	if c.CalibCutV == nil {
		return 200
	}
	return *c.CalibCutV
}

// GetConfidenceThreshold returns the strict lower bound on mask confidence.
func (c *CalibrationConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.3
	}
	return *c.ConfidenceThreshold
}

// GetMaxMeanResidual returns the per-point residual ceiling in squared pixels.
func (c *CalibrationConfig) GetMaxMeanResidual() float64 {
	if c.MaxMeanResidual == nil {
		return 15
	}
	return *c.MaxMeanResidual
}

// GetBatchSize returns the history length that must be exceeded before a flush.
func (c *CalibrationConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 50
	}
	return *c.BatchSize
}

// GetParallelEpsilon returns the slope difference at or below which two
// lines are treated as parallel. Zero means exact equality.
func (c *CalibrationConfig) GetParallelEpsilon() float64 {
	if c.ParallelEpsilon == nil {
		return 0
	}
	return *c.ParallelEpsilon
}

// GetGridDistanceM returns the far distance used to place the projection cutoff row.
func (c *CalibrationConfig) GetGridDistanceM() float64 {
	if c.GridDistanceM == nil {
		return 60
	}
	return *c.GridDistanceM
}

// GetCameraHeightM returns the camera mounting height above the road.
func (c *CalibrationConfig) GetCameraHeightM() float64 {
	if c.CameraHeightM == nil {
		return 1.3
	}
	return *c.CameraHeightM
}

// GetCameraRollDeg returns the camera roll.
func (c *CalibrationConfig) GetCameraRollDeg() float64 {
	if c.CameraRollDeg == nil {
		return 0
	}
	return *c.CameraRollDeg
}

// GetFieldOfViewDeg returns the horizontal field of view.
func (c *CalibrationConfig) GetFieldOfViewDeg() float64 {
	if c.FieldOfViewDeg == nil {
		return 45
	}
	return *c.FieldOfViewDeg
}

// GetImageWidth returns the image width in pixels.
func (c *CalibrationConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return 1024
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image height in pixels.
func (c *CalibrationConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return 512
	}
	return *c.ImageHeight
}

// GetInferenceURL returns the lane segmentation endpoint, or "" when unset.
func (c *CalibrationConfig) GetInferenceURL() string {
	if c.InferenceURL == nil {
		return ""
	}
	return *c.InferenceURL
}

// GetInferenceTimeout parses and returns the InferenceTimeout.
func (c *CalibrationConfig) GetInferenceTimeout() time.Duration {
	if c.InferenceTimeout == nil || *c.InferenceTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.InferenceTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetJournalPath returns the sqlite journal path, or "" when journaling is off.
func (c *CalibrationConfig) GetJournalPath() string {
	if c.JournalPath == nil {
		return ""
	}
	return *c.JournalPath
}
