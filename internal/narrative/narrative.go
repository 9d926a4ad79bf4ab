// Package narrative turns a verdict and its attribution into short
// human-readable lines.
package narrative

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/explain"
)

// HighConfidence is the tier boundary; confidence above it is "high".
const HighConfidence = 0.8

const topIndicators = 3

var (
	wordPattern     = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	sentencePattern = regexp.MustCompile(`[.!?]+`)
)

// Input is everything the rules look at.
type Input struct {
	Domain     ai.Domain
	Positive   bool
	Label      string
	Confidence float64
	// Faces is ignored for text.
	Faces int
	// Units is nil when no attribution is available; largest |weight| first.
	Units []explain.Unit
	// Text is the analysed text, used for statistics in the text domain.
	Text string
}

// Build applies the rules in order. The result always has the summary line.
func Build(in Input) []string {
	lines := []string{Summary(in.Label, in.Confidence)}

	if in.Domain != ai.DomainText {
		lines = append(lines, faceLines(in)...)
	}

	lines = append(lines, tierLines(in)...)

	if in.Domain == ai.DomainText {
		lines = append(lines, Statistics(in.Text))
		if in.Units != nil {
			lines = append(lines, indicatorLines(in)...)
		}
	}
	return lines
}

// Summary is the first line of every explanation.
func Summary(label string, confidence float64) string {
	return fmt.Sprintf("Model detected %s content with %d%% confidence", label, int(math.RoundToEven(confidence*100)))
}

// Fallback is used when attribution failed.
func Fallback(label string, err error) []string {
	return []string{
		fmt.Sprintf("Model detected %s content", label),
		fmt.Sprintf("Unable to generate detailed explanations: %v", err),
	}
}

// Statistics counts words and sentences.
func Statistics(text string) string {
	words := len(wordPattern.FindAllString(text, -1))
	sentences := len(sentencePattern.FindAllString(text, -1)) + 1
	avg := float64(words) / float64(max(1, sentences))
	return fmt.Sprintf("Text statistics: %d words, %d sentences, %.1f words per sentence", words, sentences, avg)
}

func faceLines(in Input) []string {
	noun := in.Domain.Noun()
	if in.Faces > 0 {
		lines := []string{fmt.Sprintf("Detected %d face(s) in the %s", in.Faces, noun)}
		if in.Positive {
			return append(lines,
				"Check facial features for unnatural smoothness or asymmetry",
				"Examine eye details, reflections, and pupil shapes")
		}
		return append(lines, "Facial features appear natural and consistent")
	}

	if in.Positive {
		return []string{fmt.Sprintf("No faces detected - examine overall %s consistency", noun)}
	}
	return []string{fmt.Sprintf("No faces detected - %s appears to have natural patterns", noun)}
}

type tier struct {
	high, highHint         string
	moderate, moderateHint string
}

var tiers = map[ai.Domain]map[bool]tier{
	ai.DomainImage: {
		true: {
			"High confidence in AI generation detection", "Check for unnatural textures and inconsistent lighting",
			"Moderate confidence in AI generation detection", "Some AI artifacts may be present but subtle",
		},
		false: {
			"High confidence this is an authentic image", "Natural patterns and consistent details throughout",
			"Moderate confidence this is an authentic image", "Some areas may have unusual patterns but likely natural",
		},
	},
	ai.DomainVideo: {
		true: {
			"High confidence in deepfake detection", "Check for blending seams around the face and flickering between frames",
			"Moderate confidence in deepfake detection", "Some manipulation artifacts may be present but subtle",
		},
		false: {
			"High confidence this is an authentic video", "Motion and lighting stay consistent across frames",
			"Moderate confidence this is an authentic video", "Some frames look unusual but are likely compression artifacts",
		},
	},
	ai.DomainText: {
		true: {
			"High confidence in AI generation detection", "Look for uniform sentence structure and generic phrasing",
			"Moderate confidence in AI generation detection", "Some passages read as machine-written but the signals are mixed",
		},
		false: {
			"High confidence this is human-written text", "Varied phrasing and sentence rhythm typical of human writing",
			"Moderate confidence this is human-written text", "Some passages are formulaic but likely human",
		},
	},
}

func tierLines(in Input) []string {
	t, ok := tiers[in.Domain][in.Positive]
	if !ok {
		t = tiers[ai.DomainImage][in.Positive]
	}
	if in.Confidence > HighConfidence {
		return []string{t.high, t.highHint}
	}
	return []string{t.moderate, t.moderateHint}
}

func indicatorLines(in Input) []string {
	var pos, neg []string
	for _, u := range in.Units {
		switch {
		case u.Weight > 0 && len(pos) < topIndicators:
			pos = append(pos, u.Name)
		case u.Weight < 0 && len(neg) < topIndicators:
			neg = append(neg, u.Name)
		}
	}

	var lines []string
	if len(pos) > 0 {
		if in.Positive {
			lines = append(lines, "Key indicators of AI generation: "+strings.Join(pos, ", "))
		} else {
			lines = append(lines, "Key indicators of human writing: "+strings.Join(pos, ", "))
		}
	}
	if len(neg) > 0 {
		if in.Positive {
			lines = append(lines, "Features suggesting human authorship: "+strings.Join(neg, ", "))
		} else {
			lines = append(lines, "Features suggesting AI generation: "+strings.Join(neg, ", "))
		}
	}
	return lines
}
