package ai

import (
	"fmt"
	"math"
)

// probabilityFromOutput normalizes every model head we support into one
// probability of the positive class. Accepted shapes are [1], [1,1] (single
// score) and [1,2] (two-class, positive at index 1). With logits set the raw
// values are passed through sigmoid or softmax first.
func probabilityFromOutput(shape []int64, data []float32, logits bool) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty model output")
	}

	var classes int64
	switch {
	case len(shape) == 1 && shape[0] == 1:
		classes = 1
	case len(shape) == 2 && shape[0] == 1 && (shape[1] == 1 || shape[1] == 2):
		classes = shape[1]
	default:
		return 0, fmt.Errorf("unsupported output shape %v", shape)
	}
	if int64(len(data)) < classes {
		return 0, fmt.Errorf("output shape %v but %d values", shape, len(data))
	}

	var p float64
	if classes == 1 {
		p = float64(data[0])
		if logits {
			p = sigmoid(p)
		}
	} else {
		neg, pos := float64(data[0]), float64(data[1])
		if logits {
			m := math.Max(neg, pos)
			en, ep := math.Exp(neg-m), math.Exp(pos-m)
			p = ep / (en + ep)
		} else {
			p = pos
		}
	}

	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("non-finite model output %v", p)
	}
	return clamp01(p), nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
