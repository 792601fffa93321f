package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lane-calibration/internal/calibration"
)

func grayPNG(t *testing.T, w, h int, lit map[image.Point]uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for p, y := range lit {
		img.SetGray(p.X, p.Y, color.Gray{Y: y})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMaskFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(10, 20, 14, 23))
	img.SetGray(11, 22, color.Gray{Y: 255})
	img.SetGray(13, 20, color.Gray{Y: 51})

	m := MaskFromImage(img)
	assert.Equal(t, 4, m.Width)
	assert.Equal(t, 3, m.Height)
	assert.Equal(t, 1.0, m.At(1, 2))
	assert.InDelta(t, 0.2, m.At(3, 0), 1e-12)
	assert.Equal(t, 0.0, m.At(0, 0))
}

func inferenceServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDetector_Detect(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		img, err := png.Decode(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b := img.Bounds()
		n := b.Dx() * b.Dy()
		left := make([]float64, n)
		right := make([]float64, n)
		left[0] = 0.9
		right[n-1] = 0.8
		_ = json.NewEncoder(w).Encode(map[string]any{
			"width": b.Dx(), "height": b.Dy(), "left": left, "right": right,
		})
	})

	d := NewHTTPDetector(srv.URL, 0)
	det, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 6)))
	require.NoError(t, err)
	assert.Equal(t, 8, det.Left.Width)
	assert.Equal(t, 6, det.Right.Height)
	assert.Equal(t, 0.9, det.Left.At(0, 0))
	assert.Equal(t, 0.8, det.Right.At(7, 5))
	assert.NotEmpty(t, det.Raw)

	assert.NoError(t, d.CheckHealth(context.Background()))
}

func TestHTTPDetector_SizeMismatch(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"width": 2, "height": 2, "left": []float64{0, 0, 0, 0}, "right": []float64{0, 0, 0, 0},
		})
	})

	_, err := NewHTTPDetector(srv.URL, 0).Detect(context.Background(), image.NewGray(image.Rect(0, 0, 3, 3)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, calibration.ErrMaskShape))
}

func TestHTTPDetector_ShortMask(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"width": 2, "height": 1, "left": []float64{0}, "right": []float64{0, 0},
		})
	})

	_, err := NewHTTPDetector(srv.URL, 0).Detect(context.Background(), image.NewGray(image.Rect(0, 0, 2, 1)))
	assert.Error(t, err)
}

func TestHTTPDetector_ServerErrors(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	d := NewHTTPDetector(srv.URL, 0)
	_, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)))
	assert.Error(t, err)
	assert.Error(t, d.CheckHealth(context.Background()))
}

func TestHTTPDetector_BadJSON(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	_, err := NewHTTPDetector(srv.URL, 0).Detect(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)))
	assert.Error(t, err)
}

func TestReplayDetector(t *testing.T) {
	fsys := fstest.MapFS{
		"run/0002_left.png":  &fstest.MapFile{Data: grayPNG(t, 4, 3, map[image.Point]uint8{{X: 1, Y: 1}: 255})},
		"run/0002_right.png": &fstest.MapFile{Data: grayPNG(t, 4, 3, nil)},
		"run/0001_left.png":  &fstest.MapFile{Data: grayPNG(t, 4, 3, nil)},
		"run/0001_right.png": &fstest.MapFile{Data: grayPNG(t, 4, 3, map[image.Point]uint8{{X: 2, Y: 0}: 255})},
		"run/notes.txt":      &fstest.MapFile{Data: []byte("ignored")},
	}

	d, err := NewReplayDetector(fsys, "run")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001", "0002"}, d.Frames())

	ctx := context.Background()
	first, err := d.Detect(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "0001", string(first.Raw))
	assert.Equal(t, 1.0, first.Right.At(2, 0))

	second, err := d.Detect(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, second.Left.At(1, 1))

	_, err = d.Detect(ctx, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayDetector_Errors(t *testing.T) {
	_, err := NewReplayDetector(fstest.MapFS{}, "missing")
	assert.Error(t, err)

	unpaired := fstest.MapFS{"a_left.png": &fstest.MapFile{Data: grayPNG(t, 2, 2, nil)}}
	_, err = NewReplayDetector(unpaired, ".")
	assert.Error(t, err)

	empty := fstest.MapFS{"readme.md": &fstest.MapFile{Data: []byte("x")}}
	_, err = NewReplayDetector(empty, ".")
	assert.Error(t, err)

	mismatched := fstest.MapFS{
		"a_left.png":  &fstest.MapFile{Data: grayPNG(t, 2, 2, nil)},
		"a_right.png": &fstest.MapFile{Data: grayPNG(t, 3, 2, nil)},
	}
	d, err := NewReplayDetector(mismatched, ".")
	require.NoError(t, err)
	_, err = d.Detect(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPDetector_NilFrame(t *testing.T) {
	_, err := NewHTTPDetector("http://127.0.0.1:0", 0).Detect(context.Background(), nil)
	assert.Error(t, err)
}
