// Package enrichment runs object detection over downloaded channel images
// and classifies them for the warehouse.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/blockedby/tg-warehouse/internal/metrics"
	"github.com/blockedby/tg-warehouse/internal/models"
)

// Detector finds objects in an image file.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]models.Detection, error)
}

// detectResponse is the body returned by the detection service.
type detectResponse struct {
	Detections []models.Detection `json:"detections"`
}

// HTTPDetector posts images to a detection service.
type HTTPDetector struct {
	url    string
	client *http.Client
}

// NewHTTPDetector creates a detector for the service at url.
func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDetector{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Detect uploads the image as multipart field "file".
func (d *HTTPDetector) Detect(ctx context.Context, imagePath string) (dets []models.Detection, err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("detector", "detect", start, err) }()

	body, contentType, err := imageForm(imagePath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", filepath.Base(imagePath), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	return out.Detections, nil
}

func imageForm(imagePath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
