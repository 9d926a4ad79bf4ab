// Package faces finds face bounding boxes on grayscale frames. Boxes are only
// used for visualization, so callers treat every failure as zero faces.
package faces

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/rs/zerolog"
)

// Detector returns face boxes in image coordinates.
type Detector interface {
	Detect(gray *image.Gray) ([]image.Rectangle, error)
}

// Nop never finds a face. Used when no cascade is configured.
type Nop struct{}

func (Nop) Detect(*image.Gray) ([]image.Rectangle, error) { return nil, nil }

// Options tune the pigo cascade scan.
type Options struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	MinQuality   float32
	IoUThreshold float64
}

// PigoDetector runs a pigo pixel-intensity-comparison cascade.
type PigoDetector struct {
	logger     zerolog.Logger
	opts       Options
	classifier *pigo.Pigo
}

// NewPigoDetector reads and unpacks the cascade file once.
func NewPigoDetector(logger zerolog.Logger, cascadePath string, opts Options) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read face cascade: %w", err)
	}
	return newPigoDetector(logger, data, opts)
}

func newPigoDetector(logger zerolog.Logger, cascade []byte, opts Options) (d *PigoDetector, err error) {
	// Unpack indexes into the buffer without bounds checks
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unpack face cascade: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}

	logger.Info().Int("bytes", len(cascade)).Msg("face cascade loaded")

	return &PigoDetector{
		logger:     logger.With().Str("component", "faces").Logger(),
		opts:       opts,
		classifier: classifier,
	}, nil
}

// Detect scans the frame and returns clustered detections above MinQuality.
func (d *PigoDetector) Detect(gray *image.Gray) ([]image.Rectangle, error) {
	b := gray.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.opts.MinSize,
		MaxSize:     d.opts.MaxSize,
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: packed(gray),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.opts.IoUThreshold)

	boxes := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.opts.MinQuality {
			continue
		}
		boxes = append(boxes, toBox(det, b))
	}

	d.logger.Debug().Int("faces", len(boxes)).Int("candidates", len(dets)).Msg("face scan complete")
	return boxes, nil
}

// packed returns the pixels with no row padding.
func packed(gray *image.Gray) []uint8 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if gray.Stride == w && b.Min == (image.Point{}) {
		return gray.Pix[:w*h]
	}
	out := make([]uint8, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := gray.PixOffset(b.Min.X, y)
		out = append(out, gray.Pix[off:off+w]...)
	}
	return out
}

// toBox converts a centre/scale detection into a rectangle clipped to bounds.
func toBox(det pigo.Detection, bounds image.Rectangle) image.Rectangle {
	half := det.Scale / 2
	r := image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale)
	return r.Add(bounds.Min).Intersect(bounds)
}

// SafeDetect calls d and converts a panic into an error.
func SafeDetect(d Detector, gray *image.Gray) (boxes []image.Rectangle, err error) {
	defer func() {
		if r := recover(); r != nil {
			boxes, err = nil, fmt.Errorf("face detector panic: %v", r)
		}
	}()
	return d.Detect(gray)
}
