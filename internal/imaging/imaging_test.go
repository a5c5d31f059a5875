package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestCrop(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 80))

	t.Run("inside bounds", func(t *testing.T) {
		got := Crop(src, image.Rect(10, 10, 50, 40))
		if got == nil {
			t.Fatal("expected a crop")
		}
		b := got.Bounds()
		if b.Min.X != 0 || b.Min.Y != 0 || b.Dx() != 40 || b.Dy() != 30 {
			t.Errorf("expected origin-0 40x30 crop, got %v", b)
		}
	})

	t.Run("clamped to bounds", func(t *testing.T) {
		got := Crop(src, image.Rect(80, 60, 200, 200))
		if got == nil {
			t.Fatal("expected a crop")
		}
		b := got.Bounds()
		if b.Dx() != 20 || b.Dy() != 20 {
			t.Errorf("expected crop clamped to 20x20, got %v", b)
		}
	})

	t.Run("outside bounds", func(t *testing.T) {
		if got := Crop(src, image.Rect(200, 200, 300, 300)); got != nil {
			t.Errorf("expected nil for a crop outside the image, got %v", got.Bounds())
		}
	})

	t.Run("degenerate rect", func(t *testing.T) {
		if got := Crop(src, image.Rect(10, 10, 10, 10)); got != nil {
			t.Errorf("expected nil for an empty rect, got %v", got.Bounds())
		}
	})

	t.Run("preserves pixels", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 20, 20))
		src.Set(5, 5, color.RGBA{R: 200, A: 255})
		got := Crop(src, image.Rect(4, 4, 10, 10))
		if got == nil {
			t.Fatal("expected a crop")
		}
		r, _, _, _ := got.At(1, 1).RGBA()
		if r>>8 != 200 {
			t.Errorf("expected red pixel to survive the crop, got %d", r>>8)
		}
	})
}

func TestSharpness(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 32, 32))

	checker := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				checker.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	if s := Sharpness(flat); s != 0 {
		t.Errorf("expected zero sharpness for a flat image, got %v", s)
	}
	if Sharpness(checker) <= Sharpness(flat) {
		t.Error("expected a checkerboard to be sharper than a flat image")
	}

	t.Run("tiny image", func(t *testing.T) {
		tiny := image.NewGray(image.Rect(0, 0, 2, 2))
		if s := Sharpness(tiny); s != 0 {
			t.Errorf("expected zero sharpness for an image below 3x3, got %v", s)
		}
	})
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	data, err := EncodeJPEG(img)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 40 || decoded.Bounds().Dy() != 30 {
		t.Errorf("expected 40x30 image, got %v", decoded.Bounds())
	}
}

func TestAnnotate(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 120, 90))

	annotated := Annotate(frame, []Annotation{
		{Rect: image.Rect(10, 10, 60, 50), Label: "ID: 1"},
		{Rect: image.Rect(-5, -5, 10, 10), Label: "ID: 2"},
	}, "FPS: 12.50")

	if annotated == nil {
		t.Fatal("expected an annotated image")
	}
	if annotated.Bounds() != frame.Bounds() {
		t.Errorf("expected unchanged bounds, got %v", annotated.Bounds())
	}

	// Border pixel of the first box should be the box colour.
	r, g, b, _ := annotated.At(10, 30).RGBA()
	br, bg, bb, _ := boxColor.RGBA()
	if r != br || g != bg || b != bb {
		t.Error("expected box border to be drawn")
	}

	// The source frame must not be mutated.
	if r, _, _, _ := frame.At(10, 30).RGBA(); r != 0 {
		t.Error("expected the source frame to be untouched")
	}
}
