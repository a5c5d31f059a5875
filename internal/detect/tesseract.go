package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractReader reads plate text with a local Tesseract engine instead of a
// remote OCR service. The client is not safe for concurrent use, so calls are
// serialised; the pipeline has a single reader stage anyway.
type TesseractReader struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func NewTesseractReader() (*TesseractReader, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetWhitelist("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set character whitelist: %w", err)
	}
	return &TesseractReader{client: client}, nil
}

func (r *TesseractReader) Read(ctx context.Context, plateCrop image.Image) (string, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, plateCrop); err != nil {
		return "", 0, fmt.Errorf("failed to encode plate crop: %w", err)
	}
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("failed to set OCR image: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("failed to extract text: %w", err)
	}
	text = strings.TrimSpace(text)

	// Average word confidence, scaled to [0,1]. Missing boxes mean no
	// confidence is available and the read falls back to 0.
	var confidence float64
	if boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		var total float64
		var count int
		for _, box := range boxes {
			if box.Confidence > 0 {
				total += box.Confidence
				count++
			}
		}
		if count > 0 {
			confidence = total / float64(count) / 100.0
		}
	}

	return text, confidence, nil
}

func (r *TesseractReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
