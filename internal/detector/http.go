package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/banshee-data/lane-calibration/internal/calibration"
)

// maxResponseBytes bounds the inference response: two float maps for a
// 2048x2048 frame encoded as JSON fit comfortably.
const maxResponseBytes = 256 << 20

// HTTPDetector posts frames to an external lane segmentation service.
//
// Request: multipart/form-data with the PNG-encoded frame in field "file".
// Response: {"width": W, "height": H, "left": [W*H floats], "right": [...]}
// with row-major probabilities.
type HTTPDetector struct {
	inferenceURL string
	client       *http.Client
}

// NewHTTPDetector creates a detector for inferenceURL.
func NewHTTPDetector(inferenceURL string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		inferenceURL: inferenceURL,
		client:       &http.Client{Timeout: timeout},
	}
}

type inferenceResponse struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Left   []float64 `json:"left"`
	Right  []float64 `json:"right"`
}

// Detect runs inference on img.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) (Detection, error) {
	if img == nil {
		return Detection{}, errors.New("http detector needs a camera frame")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.png")
	if err != nil {
		return Detection{}, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return Detection{}, fmt.Errorf("encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Detection{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.inferenceURL, body)
	if err != nil {
		return Detection{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return Detection{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Detection{}, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Detection{}, fmt.Errorf("read response: %w", err)
	}

	var result inferenceResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return Detection{}, fmt.Errorf("decode response: %w", err)
	}

	b := img.Bounds()
	if result.Width != b.Dx() || result.Height != b.Dy() {
		return Detection{}, fmt.Errorf("%w: response is %dx%d, frame is %dx%d",
			calibration.ErrMaskShape, result.Width, result.Height, b.Dx(), b.Dy())
	}
	left, err := calibration.MaskFromData(result.Width, result.Height, result.Left)
	if err != nil {
		return Detection{}, fmt.Errorf("left mask: %w", err)
	}
	right, err := calibration.MaskFromData(result.Width, result.Height, result.Right)
	if err != nil {
		return Detection{}, fmt.Errorf("right mask: %w", err)
	}

	return Detection{Raw: raw, Left: left, Right: right}, nil
}

// CheckHealth probes the service's /health endpoint.
func (d *HTTPDetector) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.inferenceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
