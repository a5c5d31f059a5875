package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"gonum.org/v1/gonum/stat"
)

// Crop copies the region r out of img into a new image with its origin at
// (0,0). The region is clamped to the image bounds; a degenerate (zero area)
// result returns nil.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Canon().Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// Grayscale converts img to 8-bit grayscale. An *image.Gray input is
// returned unchanged.
func Grayscale(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// Sharpness is a focus measure: the variance of the 4-neighbour Laplacian
// response over the grayscale image. Blurry crops score near zero; crisp
// plate crops score in the hundreds to thousands.
func Sharpness(img image.Image) float64 {
	if img == nil {
		return 0
	}
	gray := Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	resp := make([]float64, 0, (w-2)*(h-2))
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			c := float64(gray.GrayAt(x, y).Y)
			lap := float64(gray.GrayAt(x, y-1).Y) +
				float64(gray.GrayAt(x, y+1).Y) +
				float64(gray.GrayAt(x-1, y).Y) +
				float64(gray.GrayAt(x+1, y).Y) -
				4*c
			resp = append(resp, lap)
		}
	}
	if len(resp) < 2 {
		return 0
	}
	return stat.Variance(resp, nil)
}

// EncodeJPEG encodes img for preview streaming and service calls.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	boxColor     = color.RGBA{G: 255, A: 255}
	captionColor = color.RGBA{R: 255, A: 255}
)
