// Package detect defines the narrow interfaces the pipeline consumes for
// vehicle tracking, plate detection and plate reading, plus the HTTP and
// Tesseract backed implementations. Any implementation of these interfaces is
// substitutable, including test doubles.
package detect

import (
	"context"
	"image"
)

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Width() int {
	w := b.X2 - b.X1
	if w < 0 {
		return -w
	}
	return w
}

func (b Box) Height() int {
	h := b.Y2 - b.Y1
	if h < 0 {
		return -h
	}
	return h
}

func (b Box) Area() int {
	return b.Width() * b.Height()
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2).Canon()
}

// TrackedBox is one tracker output: a vehicle bounding box with a stable
// track id. The tracker assigns the same id to the same physical vehicle
// across consecutive frames while it stays visible, and never reuses an id
// for a different vehicle without an intervening disappearance.
type TrackedBox struct {
	TrackID    int     `json:"track_id"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Detection is one plate sub-detector output within a vehicle crop.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

type VehicleTracker interface {
	Track(ctx context.Context, frame image.Image) ([]TrackedBox, error)
}

type PlateDetector interface {
	Detect(ctx context.Context, vehicleCrop image.Image) ([]Detection, error)
}

// PlateReader extracts plate text from a plate crop. Implementations that
// cannot estimate confidence return 0.
type PlateReader interface {
	Read(ctx context.Context, plateCrop image.Image) (string, float64, error)
}
