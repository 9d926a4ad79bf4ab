package ai

import (
	"context"
	"fmt"
	"math"

	"github.com/kikiluvv/slopdetect/internal/media"
)

// FrameScorer returns the probability that a canonical frame is AI-generated.
type FrameScorer interface {
	Score(ctx context.Context, t media.Tensor) (float64, error)
	Close() error
}

// TextScorer scores a batch of texts. Each row is [P(human), P(ai)].
type TextScorer interface {
	ScoreBatch(ctx context.Context, texts []string) ([][2]float64, error)
	Close() error
}

// Domain selects the label vocabulary for a verdict.
type Domain string

const (
	DomainVideo Domain = "video"
	DomainImage Domain = "image"
	DomainText  Domain = "text"
)

// Threshold above which a probability is classified as positive.
const Threshold = 0.5

// Labels returns the (positive, negative) labels used for a domain.
func (d Domain) Labels() (positive, negative string) {
	switch d {
	case DomainVideo:
		return "Fake", "Real"
	case DomainText:
		return "AI-generated", "Human-written"
	default:
		return "AI-generated", "Real"
	}
}

// Noun names the medium in narrative lines.
func (d Domain) Noun() string {
	switch d {
	case DomainVideo:
		return "frame"
	case DomainText:
		return "text"
	default:
		return "image"
	}
}

// ScoreResult is the thresholded view of one probability.
type ScoreResult struct {
	Probability float64
	Positive    bool
	Label       string
	Confidence  float64
}

// Classify applies the threshold rule. Confidence is always in [0.5, 1].
func Classify(p float64, d Domain) (ScoreResult, error) {
	if math.IsNaN(p) {
		return ScoreResult{}, fmt.Errorf("scorer returned NaN")
	}
	p = clamp01(p)

	pos, neg := d.Labels()
	if p > Threshold {
		return ScoreResult{Probability: p, Positive: true, Label: pos, Confidence: p}, nil
	}
	return ScoreResult{Probability: p, Label: neg, Confidence: 1 - p}, nil
}

// Round4 rounds to four decimal places for responses.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
