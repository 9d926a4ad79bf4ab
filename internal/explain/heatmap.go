package explain

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/rs/zerolog"
)

const (
	// DefaultPatchSize gives a 4x4 grid on a canonical frame.
	DefaultPatchSize = 56

	originalWeight = 0.7
	heatmapWeight  = 0.3
)

// HeatmapResult is the blended visualization plus the per-patch scores.
type HeatmapResult struct {
	Image *image.RGBA
	Units []Unit
}

// HeatmapExplainer scores each grid patch in isolation.
type HeatmapExplainer struct {
	logger    zerolog.Logger
	scorer    ai.FrameScorer
	patchSize int
}

// NewHeatmapExplainer returns an explainer using patchSize cells; the size
// must divide media.Size, otherwise DefaultPatchSize is used.
func NewHeatmapExplainer(logger zerolog.Logger, scorer ai.FrameScorer, patchSize int) *HeatmapExplainer {
	if patchSize <= 0 || media.Size%patchSize != 0 {
		patchSize = DefaultPatchSize
	}
	return &HeatmapExplainer{
		logger:    logger.With().Str("component", "heatmap").Logger(),
		scorer:    scorer,
		patchSize: patchSize,
	}
}

// Explain scores a copy of the frame per patch with every other pixel zeroed.
// The heatmap cell takes that raw score, not a delta from the full frame.
func (h *HeatmapExplainer) Explain(ctx context.Context, frame *media.Frame) (*HeatmapResult, error) {
	b := frame.Bounds()
	units := make([]Unit, 0, (b.Dx()/h.patchSize)*(b.Dy()/h.patchSize))

	for y := b.Min.Y; y < b.Max.Y; y += h.patchSize {
		for x := b.Min.X; x < b.Max.X; x += h.patchSize {
			cell := image.Rect(x, y, x+h.patchSize, y+h.patchSize).Intersect(b)

			p, err := h.scorer.Score(ctx, frame.Masked(cell).Tensor())
			if err != nil {
				return nil, fmt.Errorf("score patch at (%d,%d): %w", x, y, err)
			}
			if math.IsNaN(p) {
				return nil, fmt.Errorf("score patch at (%d,%d): NaN", x, y)
			}

			units = append(units, Unit{
				Name:   fmt.Sprintf("patch(%d,%d)", (y-b.Min.Y)/h.patchSize, (x-b.Min.X)/h.patchSize),
				Weight: p,
				Region: cell,
			})
		}
	}

	weights := make([]float64, len(units))
	for i, u := range units {
		weights[i] = u.Weight
	}
	levels := NormalizeHeatmap(weights)

	out := frame.Clone()
	for i, u := range units {
		blendCell(out, u.Region, jet(levels[i]))
	}

	h.logger.Debug().Int("patches", len(units)).Msg("heatmap generated")
	return &HeatmapResult{Image: out, Units: units}, nil
}

// NormalizeHeatmap min-max scales values onto [0,255]. A constant input maps
// to all zeros.
func NormalizeHeatmap(values []float64) []uint8 {
	out := make([]uint8, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return out
	}

	for i, v := range values {
		s := (v - lo) / span * 255
		switch {
		case s < 0:
			s = 0
		case s > 255:
			s = 255
		}
		out[i] = uint8(s)
	}
	return out
}

func blendCell(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := dst.PixOffset(x, y)
			p := dst.Pix[i : i+3 : i+3]
			p[0] = mix(p[0], c.R)
			p[1] = mix(p[1], c.G)
			p[2] = mix(p[2], c.B)
		}
	}
}

func mix(orig, heat uint8) uint8 {
	v := originalWeight*float64(orig) + heatmapWeight*float64(heat)
	return uint8(math.Min(255, math.Round(v)))
}
