package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is one labelled box drawn onto a preview frame.
type Annotation struct {
	Rect  image.Rectangle
	Label string
}

// Annotate copies the frame and draws labelled vehicle boxes plus a caption
// (throughput readout) in the top-left corner. The input frame is never
// modified; annotated copies go to the preview channel only.
func Annotate(frame image.Image, boxes []Annotation, caption string) image.Image {
	b := frame.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, frame, b.Min, draw.Src)

	for _, a := range boxes {
		r := a.Rect.Canon().Intersect(b)
		if r.Empty() {
			continue
		}
		drawRect(out, r, boxColor)
		if a.Label != "" {
			drawLabel(out, a.Label, r.Min.X, r.Min.Y-4, boxColor)
		}
	}
	if caption != "" {
		drawLabel(out, caption, b.Min.X+10, b.Min.Y+20, captionColor)
	}
	return out
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	const thickness = 2
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, r.Min.Y+t, c)
			img.Set(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.Set(r.Min.X+t, y, c)
			img.Set(r.Max.X-1-t, y, c)
		}
	}
}

func drawLabel(img *image.RGBA, label string, x, y int, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
