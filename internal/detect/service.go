package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"
)

const serviceTimeout = 10 * time.Second

// serviceClient posts JPEG frames to a YOLO-style inference service and
// decodes the JSON response. The tracker, plate detector and OCR services all
// share this shape.
type serviceClient struct {
	endpoint   string
	httpClient *http.Client
}

func newServiceClient(endpoint string) serviceClient {
	return serviceClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: serviceTimeout,
		},
	}
}

func (c *serviceClient) postFrame(ctx context.Context, path string, img image.Image, out interface{}) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// TrackerClient talks to the vehicle detector/tracker service.
type TrackerClient struct {
	serviceClient
	minConfidence float64
}

func NewTrackerClient(endpoint string, minConfidence float64) *TrackerClient {
	return &TrackerClient{
		serviceClient: newServiceClient(endpoint),
		minConfidence: minConfidence,
	}
}

type trackResponse struct {
	Results []TrackedBox `json:"results"`
}

func (c *TrackerClient) Track(ctx context.Context, frame image.Image) ([]TrackedBox, error) {
	var resp trackResponse
	if err := c.postFrame(ctx, "/track", frame, &resp); err != nil {
		return nil, err
	}

	boxes := make([]TrackedBox, 0, len(resp.Results))
	for _, tb := range resp.Results {
		if tb.Confidence < c.minConfidence {
			continue
		}
		boxes = append(boxes, tb)
	}
	return boxes, nil
}

// PlateClient talks to the license plate sub-detector service.
type PlateClient struct {
	serviceClient
	minConfidence float64
}

func NewPlateClient(endpoint string, minConfidence float64) *PlateClient {
	return &PlateClient{
		serviceClient: newServiceClient(endpoint),
		minConfidence: minConfidence,
	}
}

type detectResponse struct {
	Results []Detection `json:"results"`
}

func (c *PlateClient) Detect(ctx context.Context, vehicleCrop image.Image) ([]Detection, error) {
	var resp detectResponse
	if err := c.postFrame(ctx, "/detect", vehicleCrop, &resp); err != nil {
		return nil, err
	}

	detections := make([]Detection, 0, len(resp.Results))
	for _, d := range resp.Results {
		if d.Confidence < c.minConfidence {
			continue
		}
		detections = append(detections, d)
	}
	return detections, nil
}

// ReaderClient talks to the character recognition service.
type ReaderClient struct {
	serviceClient
}

func NewReaderClient(endpoint string) *ReaderClient {
	return &ReaderClient{serviceClient: newServiceClient(endpoint)}
}

type readResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (c *ReaderClient) Read(ctx context.Context, plateCrop image.Image) (string, float64, error) {
	var resp readResponse
	if err := c.postFrame(ctx, "/read", plateCrop, &resp); err != nil {
		return "", 0, err
	}
	return resp.Text, resp.Confidence, nil
}
