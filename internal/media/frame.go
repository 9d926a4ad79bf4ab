// Package media holds the canonical frame representation shared by every
// vision stage, plus the conversions the model and the response need.
package media

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

// Size is the edge length of a canonical frame.
const Size = 224

// Frame is a canonical Size×Size RGB frame. It is never mutated after
// construction; every operation that changes pixels returns a new value.
type Frame struct {
	img *image.RGBA
}

// Canonicalize resizes src to Size×Size (bilinear) and flattens it onto an
// opaque RGB buffer.
func Canonicalize(src image.Image) *Frame {
	b := src.Bounds()
	var scaled image.Image = src
	if b.Dx() != Size || b.Dy() != Size {
		scaled = resize.Resize(Size, Size, src, resize.Bilinear)
	}

	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Over)
	return &Frame{img: dst}
}

// Bounds returns the frame rectangle.
func (f *Frame) Bounds() image.Rectangle { return f.img.Bounds() }

// RGB returns the channel values at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := f.img.PixOffset(x, y)
	p := f.img.Pix[i : i+3 : i+3]
	return p[0], p[1], p[2]
}

// Image exposes the frame for read-only use (encoding, drawing into copies).
func (f *Frame) Image() image.Image { return f.img }

// Clone returns a mutable copy of the pixels.
func (f *Frame) Clone() *image.RGBA {
	dst := image.NewRGBA(f.img.Bounds())
	copy(dst.Pix, f.img.Pix)
	return dst
}

// Masked returns a frame in which only the pixels inside keep are preserved;
// everything else is black.
func (f *Frame) Masked(keep image.Rectangle) *Frame {
	dst := image.NewRGBA(f.img.Bounds())
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	keep = keep.Intersect(f.img.Bounds())
	draw.Draw(dst, keep, f.img, keep.Min, draw.Src)
	return &Frame{img: dst}
}

// Gray converts the frame to 8-bit luminance.
func (f *Frame) Gray() *image.Gray {
	b := f.img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl := f.RGB(x, y)
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
			gray.Pix[gray.PixOffset(x, y)] = uint8(lum + 0.5)
		}
	}
	return gray
}
