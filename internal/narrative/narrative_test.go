package narrative

import (
	"errors"
	"testing"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/explain"
	"github.com/stretchr/testify/require"
)

func TestSummaryRounding(t *testing.T) {
	require.Equal(t, "Model detected Fake content with 80% confidence", Summary("Fake", 0.8))
	require.Equal(t, "Model detected Real content with 70% confidence", Summary("Real", 0.7))
	require.Equal(t, "Model detected Real content with 62% confidence", Summary("Real", 0.625))
}

func TestImageWithFaces(t *testing.T) {
	lines := Build(Input{
		Domain:     ai.DomainImage,
		Positive:   true,
		Label:      "AI-generated",
		Confidence: 0.92,
		Faces:      2,
	})

	require.Equal(t, []string{
		"Model detected AI-generated content with 92% confidence",
		"Detected 2 face(s) in the image",
		"Check facial features for unnatural smoothness or asymmetry",
		"Examine eye details, reflections, and pupil shapes",
		"High confidence in AI generation detection",
		"Check for unnatural textures and inconsistent lighting",
	}, lines)
}

func TestImageWithoutFaces(t *testing.T) {
	lines := Build(Input{Domain: ai.DomainImage, Label: "Real", Confidence: 0.6})
	require.Equal(t, []string{
		"Model detected Real content with 60% confidence",
		"No faces detected - image appears to have natural patterns",
		"Moderate confidence this is an authentic image",
		"Some areas may have unusual patterns but likely natural",
	}, lines)

	lines = Build(Input{Domain: ai.DomainImage, Positive: true, Label: "AI-generated", Confidence: 0.55})
	require.Equal(t, "No faces detected - examine overall image consistency", lines[1])

	lines = Build(Input{Domain: ai.DomainImage, Label: "Real", Confidence: 0.9, Faces: 1})
	require.Equal(t, "Facial features appear natural and consistent", lines[2])
}

func TestTextLines(t *testing.T) {
	units := []explain.Unit{
		{Name: "delve", Weight: 0.4},
		{Name: "gonna", Weight: -0.3},
		{Name: "tapestry", Weight: 0.2},
		{Name: "lol", Weight: -0.1},
		{Name: "furthermore", Weight: 0.05},
		{Name: "moreover", Weight: 0.01},
	}

	lines := Build(Input{
		Domain:     ai.DomainText,
		Positive:   true,
		Label:      "AI-generated",
		Confidence: 0.85,
		Units:      units,
		Text:       "We delve into it. Gonna be fun!",
		Faces:      3,
	})

	require.Equal(t, []string{
		"Model detected AI-generated content with 85% confidence",
		"High confidence in AI generation detection",
		"Look for uniform sentence structure and generic phrasing",
		"Text statistics: 7 words, 3 sentences, 2.3 words per sentence",
		"Key indicators of AI generation: delve, tapestry, furthermore",
		"Features suggesting human authorship: gonna, lol",
	}, lines)
}

func TestTextHumanIndicatorsSwap(t *testing.T) {
	lines := Build(Input{
		Domain:     ai.DomainText,
		Label:      "Human-written",
		Confidence: 0.7,
		Units:      []explain.Unit{{Name: "lol", Weight: 0.2}, {Name: "delve", Weight: -0.1}},
		Text:       "lol",
	})

	require.Contains(t, lines, "Key indicators of human writing: lol")
	require.Contains(t, lines, "Features suggesting AI generation: delve")
}

func TestTextWithoutAttribution(t *testing.T) {
	lines := Build(Input{Domain: ai.DomainText, Label: "Human-written", Confidence: 0.7, Text: ""})
	require.Len(t, lines, 4)
	require.Equal(t, "Text statistics: 0 words, 1 sentences, 0.0 words per sentence", lines[3])
}

func TestAlwaysHasSummary(t *testing.T) {
	for _, d := range []ai.Domain{ai.DomainImage, ai.DomainVideo, ai.DomainText, ai.Domain("other")} {
		lines := Build(Input{Domain: d, Label: "X", Confidence: 0.5})
		require.NotEmpty(t, lines)
		require.Equal(t, "Model detected X content with 50% confidence", lines[0])
	}
}

func TestFallback(t *testing.T) {
	require.Equal(t, []string{
		"Model detected Human-written content",
		"Unable to generate detailed explanations: too few words",
	}, Fallback("Human-written", errors.New("too few words")))
}
