// Package classify turns one canonical frame into a labelled prediction with
// a face-annotated thumbnail.
package classify

import (
	"context"
	"fmt"
	"image"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/faces"
	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/rs/zerolog"
)

// DefaultJPEGQuality is used for thumbnails when none is configured.
const DefaultJPEGQuality = 90

// Prediction is the verdict for one frame.
type Prediction struct {
	// Frame is 1-based position in sampling order.
	Frame  int
	Result ai.ScoreResult
	// Thumbnail is a JPEG data URI with face boxes drawn; empty if encoding failed.
	Thumbnail string
	Faces     []image.Rectangle
}

// FrameClassifier scores frames and annotates them for display.
type FrameClassifier struct {
	logger   zerolog.Logger
	scorer   ai.FrameScorer
	detector faces.Detector
	domain   ai.Domain
	quality  int
}

// New builds a classifier. A nil detector finds no faces.
func New(logger zerolog.Logger, scorer ai.FrameScorer, detector faces.Detector, domain ai.Domain, quality int) *FrameClassifier {
	if detector == nil {
		detector = faces.Nop{}
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &FrameClassifier{
		logger:   logger.With().Str("component", "classifier").Str("domain", string(domain)).Logger(),
		scorer:   scorer,
		detector: detector,
		domain:   domain,
		quality:  quality,
	}
}

// Score runs the model only and applies the threshold rule.
func (c *FrameClassifier) Score(ctx context.Context, t media.Tensor) (ai.ScoreResult, error) {
	p, err := c.scorer.Score(ctx, t)
	if err != nil {
		return ai.ScoreResult{}, fmt.Errorf("score frame: %w", err)
	}
	return ai.Classify(p, c.domain)
}

// Classify scores the tensor and annotates the raw frame. Only scorer errors
// are returned; face detection and encoding failures degrade the thumbnail.
func (c *FrameClassifier) Classify(ctx context.Context, position int, t media.Tensor, frame *media.Frame) (Prediction, error) {
	res, err := c.Score(ctx, t)
	if err != nil {
		return Prediction{}, err
	}

	boxes := c.Faces(frame)
	thumb, err := media.JPEGDataURI(media.DrawBoxes(frame, boxes, media.BoxColor, 2), c.quality)
	if err != nil {
		c.logger.Warn().Err(err).Int("frame", position).Msg("thumbnail encoding failed")
		thumb = ""
	}

	return Prediction{
		Frame:     position,
		Result:    res,
		Thumbnail: thumb,
		Faces:     boxes,
	}, nil
}

// Faces detects faces on the frame; any failure yields no boxes.
func (c *FrameClassifier) Faces(frame *media.Frame) []image.Rectangle {
	boxes, err := faces.SafeDetect(c.detector, frame.Gray())
	if err != nil {
		c.logger.Warn().Err(err).Msg("face detection failed, continuing without boxes")
		return nil
	}
	return boxes
}
