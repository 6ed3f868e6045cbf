package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
)

// HTTPTracker delegates detection and tracking to an inference sidecar
// over HTTP. Each frame is posted as a JPEG; the sidecar responds with
// the tracked objects for that frame as JSON. The caller's context
// carries the per-frame deadline, so a stalled model surfaces as a
// deadline error rather than a hung pipeline.
type HTTPTracker struct {
	endpoint string
	quality  int
	client   *http.Client
}

// NewHTTPTracker creates a tracker posting frames to the given endpoint,
// e.g. "http://127.0.0.1:9090/infer".
func NewHTTPTracker(endpoint string, jpegQuality int) *HTTPTracker {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 90
	}
	return &HTTPTracker{
		endpoint: endpoint,
		quality:  jpegQuality,
		client:   &http.Client{},
	}
}

// Infer implements DetectionTracker.
func (t *HTTPTracker) Infer(ctx context.Context, frame *Frame) ([]TrackedObject, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame %d: %w", frame.Index, err)
	}

	url := fmt.Sprintf("%s?frame=%d", t.endpoint, frame.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request for frame %d failed: %w", frame.Index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference for frame %d returned %d: %s", frame.Index, resp.StatusCode, bytes.TrimSpace(body))
	}

	var objects []TrackedObject
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("failed to decode inference response for frame %d: %w", frame.Index, err)
	}
	return objects, nil
}
