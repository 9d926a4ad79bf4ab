package media

import (
	"image"
	"image/color"
)

// BoxColor is the outline color used for detected faces.
var BoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// DrawBoxes returns a copy of the frame with each rectangle outlined.
func DrawBoxes(f *Frame, boxes []image.Rectangle, c color.RGBA, thickness int) *image.RGBA {
	dst := f.Clone()
	if thickness < 1 {
		thickness = 1
	}
	for _, box := range boxes {
		outline(dst, box.Intersect(dst.Bounds()), c, thickness)
	}
	return dst
}

func outline(dst *image.RGBA, r image.Rectangle, c color.RGBA, t int) {
	if r.Empty() {
		return
	}
	for i := 0; i < t; i++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetRGBA(x, r.Min.Y+i, c)
			dst.SetRGBA(x, r.Max.Y-1-i, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			dst.SetRGBA(r.Min.X+i, y, c)
			dst.SetRGBA(r.Max.X-1-i, y, c)
		}
	}
}
