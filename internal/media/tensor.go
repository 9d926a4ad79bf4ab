package media

// Tensor is the model input for one frame: shape (1, 1, 3, H, W), values in [0,1].
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Tensor converts the frame into a normalized single-item, single-step tensor
// in channel-major order.
func (f *Frame) Tensor() Tensor {
	b := f.img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl := f.RGB(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			data[i] = float32(r) / 255.0
			data[plane+i] = float32(g) / 255.0
			data[2*plane+i] = float32(bl) / 255.0
		}
	}

	return Tensor{
		Shape: []int64{1, 1, 3, int64(h), int64(w)},
		Data:  data,
	}
}
