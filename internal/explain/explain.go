// Package explain attributes a model verdict to parts of its input by
// re-scoring perturbed copies: image patches for frames, words for text.
package explain

import (
	"image"
	"math"
	"sort"
)

// Unit is one maskable piece of the input and its estimated influence.
type Unit struct {
	Name   string
	Weight float64
	// Region is set for image patches only.
	Region image.Rectangle
}

// sortByMagnitude orders units by |weight|, largest first, keeping input
// order among equals.
func sortByMagnitude(units []Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		return math.Abs(units[i].Weight) > math.Abs(units[j].Weight)
	})
}
