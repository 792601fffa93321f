package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCalibrationConfig(t *testing.T) {
	cfg := DefaultCalibrationConfig()

	if cfg.CalibCutV == nil || *cfg.CalibCutV != 200 {
		t.Errorf("Expected CalibCutV 200, got %v", cfg.CalibCutV)
	}
	if cfg.ConfidenceThreshold == nil || *cfg.ConfidenceThreshold != 0.3 {
		t.Errorf("Expected ConfidenceThreshold 0.3, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.BatchSize == nil || *cfg.BatchSize != 50 {
		t.Errorf("Expected BatchSize 50, got %v", cfg.BatchSize)
	}
	if cfg.InferenceTimeout == nil || *cfg.InferenceTimeout != "5s" {
		t.Errorf("Expected InferenceTimeout '5s', got %v", cfg.InferenceTimeout)
	}

	if cfg.GetMaxMeanResidual() != 15 {
		t.Errorf("GetMaxMeanResidual() = %f, want 15", cfg.GetMaxMeanResidual())
	}
	if cfg.GetParallelEpsilon() != 0 {
		t.Errorf("GetParallelEpsilon() = %f, want 0", cfg.GetParallelEpsilon())
	}
	if cfg.GetImageWidth() != 1024 || cfg.GetImageHeight() != 512 {
		t.Errorf("image size = %dx%d, want 1024x512", cfg.GetImageWidth(), cfg.GetImageHeight())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadCalibrationConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "calib_cut_v": 120,
  "confidence_threshold": 0.5,
  "batch_size": 10,
  "image_width": 640,
  "image_height": 360,
  "inference_timeout": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadCalibrationConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetCalibCutV() != 120 {
		t.Errorf("GetCalibCutV() = %d, want 120", cfg.GetCalibCutV())
	}
	if cfg.GetConfidenceThreshold() != 0.5 {
		t.Errorf("GetConfidenceThreshold() = %f, want 0.5", cfg.GetConfidenceThreshold())
	}
	if cfg.GetBatchSize() != 10 {
		t.Errorf("GetBatchSize() = %d, want 10", cfg.GetBatchSize())
	}
	if cfg.GetInferenceTimeout() != 250*time.Millisecond {
		t.Errorf("GetInferenceTimeout() = %v, want 250ms", cfg.GetInferenceTimeout())
	}
	// Omitted fields keep their defaults.
	if cfg.GetMaxMeanResidual() != 15 {
		t.Errorf("GetMaxMeanResidual() = %f, want 15", cfg.GetMaxMeanResidual())
	}
}

func TestLoadCalibrationConfigMissing(t *testing.T) {
	_, err := LoadCalibrationConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadCalibrationConfigWrongExtension(t *testing.T) {
	_, err := LoadCalibrationConfig("config.yaml")
	if err == nil {
		t.Error("Expected error for non-json extension, got nil")
	}
}

func TestLoadCalibrationConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "calib_cut_v": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadCalibrationConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetCalibCutV() != 200 {
		t.Errorf("GetCalibCutV() = %d, want 200", cfg.GetCalibCutV())
	}
	if cfg.GetFieldOfViewDeg() != 45 {
		t.Errorf("GetFieldOfViewDeg() = %f, want 45", cfg.GetFieldOfViewDeg())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *CalibrationConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultCalibrationConfig()},
		{name: "empty config is valid", cfg: &CalibrationConfig{}},
		{
			name:    "confidence threshold too high",
			cfg:     &CalibrationConfig{ConfidenceThreshold: ptrFloat64(1.0)},
			wantErr: true,
		},
		{
			name:    "negative confidence threshold",
			cfg:     &CalibrationConfig{ConfidenceThreshold: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "zero batch size",
			cfg:     &CalibrationConfig{BatchSize: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "negative parallel epsilon",
			cfg:     &CalibrationConfig{ParallelEpsilon: ptrFloat64(-1e-9)},
			wantErr: true,
		},
		{
			name:    "cut row past image",
			cfg:     &CalibrationConfig{CalibCutV: ptrInt(512)},
			wantErr: true,
		},
		{
			name:    "cut row inside custom image",
			cfg:     &CalibrationConfig{CalibCutV: ptrInt(100), ImageHeight: ptrInt(120)},
			wantErr: false,
		},
		{
			name:    "field of view out of range",
			cfg:     &CalibrationConfig{FieldOfViewDeg: ptrFloat64(180)},
			wantErr: true,
		},
		{
			name:    "invalid inference timeout",
			cfg:     &CalibrationConfig{InferenceTimeout: ptrString("soon")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetInferenceTimeoutFallback(t *testing.T) {
	cfg := &CalibrationConfig{InferenceTimeout: ptrString("bogus")}
	if got := cfg.GetInferenceTimeout(); got != 5*time.Second {
		t.Errorf("GetInferenceTimeout() = %v, want 5s on parse error", got)
	}
}
