package explain

import "image/color"

// jet maps v in [0,255] onto the blue-cyan-yellow-red JET ramp.
func jet(v uint8) color.RGBA {
	x := float64(v) / 255
	return color.RGBA{
		R: ramp(1.5 - abs(4*x-3)),
		G: ramp(1.5 - abs(4*x-2)),
		B: ramp(1.5 - abs(4*x-1)),
		A: 255,
	}
}

func ramp(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	}
	return uint8(f*255 + 0.5)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
