// Package video samples a fixed number of evenly spaced frames from a clip
// and converts them to canonical frames.
package video

import (
	"context"
	"errors"
	"image"
	"math"

	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/rs/zerolog"
)

// ErrNotEnoughFrames is returned when fewer frames than requested decode.
var ErrNotEnoughFrames = errors.New("Not enough frames extracted.")

// DefaultFrames is the number of frames sampled per video.
const DefaultFrames = 16

// Source is a seekable, decodable video.
type Source interface {
	FrameCount(ctx context.Context) (int, error)
	ReadFrame(ctx context.Context, index int) (image.Image, error)
}

// Sample is one decoded frame. Tensor and Frame always describe the same pixels.
type Sample struct {
	Index  int
	Frame  *media.Frame
	Tensor media.Tensor
}

// SampleIndices spreads n indices evenly over [0, total-1], rounding to the
// nearest frame. Indices repeat when total < n.
func SampleIndices(total, n int) []int {
	if total < 1 || n < 1 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}

	idx := make([]int, n)
	step := float64(total-1) / float64(n-1)
	for i := range idx {
		idx[i] = int(math.Round(float64(i) * step))
	}
	return idx
}

// Sampler decodes N frames from a Source.
type Sampler struct {
	logger zerolog.Logger
	frames int
}

// NewSampler creates a sampler for n frames; n < 1 uses DefaultFrames.
func NewSampler(logger zerolog.Logger, n int) *Sampler {
	if n < 1 {
		n = DefaultFrames
	}
	return &Sampler{
		logger: logger.With().Str("component", "sampler").Logger(),
		frames: n,
	}
}

// Frames is the number of frames each call returns.
func (s *Sampler) Frames() int { return s.frames }

// Sample returns exactly Frames() samples in index order or ErrNotEnoughFrames.
func (s *Sampler) Sample(ctx context.Context, src Source) ([]Sample, error) {
	total, err := src.FrameCount(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("frame count unavailable")
		return nil, ErrNotEnoughFrames
	}
	if total < 1 {
		s.logger.Warn().Int("total", total).Msg("video has no frames")
		return nil, ErrNotEnoughFrames
	}

	indices := SampleIndices(total, s.frames)
	samples := make([]Sample, 0, len(indices))

	for _, i := range indices {
		img, err := src.ReadFrame(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn().Err(err).Int("index", i).Msg("frame decode failed")
			continue
		}

		frame := media.Canonicalize(img)
		samples = append(samples, Sample{
			Index:  i,
			Frame:  frame,
			Tensor: frame.Tensor(),
		})
	}

	if len(samples) != s.frames {
		s.logger.Warn().
			Int("decoded", len(samples)).
			Int("wanted", s.frames).
			Int("total", total).
			Msg("not enough frames")
		return nil, ErrNotEnoughFrames
	}

	s.logger.Debug().Int("frames", len(samples)).Int("total", total).Msg("video sampled")
	return samples, nil
}
