package explain

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// brightnessScorer returns the mean tensor value, so bright patches score high.
type brightnessScorer struct {
	err   error
	calls int
}

func (s *brightnessScorer) Score(_ context.Context, t media.Tensor) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	var sum float64
	for _, v := range t.Data {
		sum += float64(v)
	}
	return sum / float64(len(t.Data)), nil
}

func (s *brightnessScorer) Close() error { return nil }

// keywordScorer returns a high AI probability when the keyword is present.
type keywordScorer struct {
	keyword string
	err     error
	short   bool
	texts   [][]string
}

func (s *keywordScorer) ScoreBatch(_ context.Context, texts []string) ([][2]float64, error) {
	s.texts = append(s.texts, texts)
	if s.err != nil {
		return nil, s.err
	}
	rows := make([][2]float64, len(texts))
	for i, t := range texts {
		p := 0.2
		if s.keyword != "" && strings.Contains(t, s.keyword) {
			p = 0.9
		}
		rows[i] = [2]float64{1 - p, p}
	}
	if s.short {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func (s *keywordScorer) Close() error { return nil }

func TestNormalizeHeatmap(t *testing.T) {
	tests := [][]float64{
		{0.1, 0.2, 0.9},
		{-5, 3, 1000},
		{0, 0, 0, 0},
		{0.5},
		{},
	}

	for _, values := range tests {
		out := NormalizeHeatmap(values)
		require.Len(t, out, len(values))
		for _, v := range out {
			require.True(t, v <= 255)
		}
	}

	out := NormalizeHeatmap([]float64{0.2, 0.6, 1.0})
	require.Equal(t, []uint8{0, 127, 255}, out)

	require.Equal(t, []uint8{0, 0, 0}, NormalizeHeatmap([]float64{0.7, 0.7, 0.7}))
}

func TestJetEndpoints(t *testing.T) {
	lo, hi := jet(0), jet(255)
	require.Greater(t, lo.B, lo.R)
	require.Greater(t, hi.R, hi.B)
	require.Equal(t, uint8(255), jet(128).G)
}

func TestHeatmapExplain(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, media.Size, media.Size))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	// one bright patch in the second row, third column
	for y := 56; y < 112; y++ {
		for x := 112; x < 168; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = 255, 255, 255
		}
	}
	frame := media.Canonicalize(img)

	scorer := &brightnessScorer{}
	res, err := NewHeatmapExplainer(zerolog.Nop(), scorer, 56).Explain(context.Background(), frame)
	require.NoError(t, err)
	require.Equal(t, 16, scorer.calls)
	require.Len(t, res.Units, 16)
	require.Equal(t, frame.Bounds(), res.Image.Bounds())

	var best Unit
	for _, u := range res.Units {
		if u.Weight > best.Weight {
			best = u
		}
	}
	require.Equal(t, "patch(1,2)", best.Name)
	require.Equal(t, image.Rect(112, 56, 168, 112), best.Region)

	// the brightest patch is blended towards red, dark patches towards blue
	hot := res.Image.RGBAAt(120, 60)
	cold := res.Image.RGBAAt(10, 10)
	require.Greater(t, hot.R, hot.B)
	require.Greater(t, cold.B, cold.R)
}

func TestHeatmapConstantScores(t *testing.T) {
	frame := media.Canonicalize(image.NewRGBA(image.Rect(0, 0, 32, 32)))
	scorer := &constantFrameScorer{p: 0}

	res, err := NewHeatmapExplainer(zerolog.Nop(), scorer, 0).Explain(context.Background(), frame)
	require.NoError(t, err)
	for _, u := range res.Units {
		require.Zero(t, u.Weight)
	}
	// black frame blended with jet(0)
	px := res.Image.RGBAAt(100, 100)
	require.Equal(t, mix(0, jet(0).B), px.B)
}

type constantFrameScorer struct{ p float64 }

func (s *constantFrameScorer) Score(context.Context, media.Tensor) (float64, error) { return s.p, nil }
func (s *constantFrameScorer) Close() error                                         { return nil }

func TestHeatmapScorerError(t *testing.T) {
	frame := media.Canonicalize(image.NewRGBA(image.Rect(0, 0, 32, 32)))
	_, err := NewHeatmapExplainer(zerolog.Nop(), &brightnessScorer{err: errors.New("model gone")}, 56).
		Explain(context.Background(), frame)
	require.ErrorContains(t, err, "model gone")
}

func TestIndexText(t *testing.T) {
	it := indexText("a b, a!")
	require.Equal(t, []string{"a", "b"}, it.vocab)
	require.Equal(t, "a b, a!", it.without(nil))
	require.Equal(t, " b, !", it.without(map[int]bool{0: true}))
	require.Equal(t, "a , a!", it.without(map[int]bool{1: true}))

	require.Zero(t, indexText("  ...  ").numWords())
	require.Equal(t, []string{"héllo", "wörld"}, indexText("héllo, wörld").vocab)
}

func TestPerturb(t *testing.T) {
	it := indexText("the quick brown fox jumps over the lazy dog")
	d := it.numWords()
	data, texts := perturb(it, 50, rand.New(rand.NewSource(7)))

	rows, cols := data.Dims()
	require.Equal(t, 50, rows)
	require.Equal(t, d, cols)
	require.Equal(t, "the quick brown fox jumps over the lazy dog", texts[0])

	for i := 0; i < rows; i++ {
		active := 0
		for j := 0; j < cols; j++ {
			active += int(data.At(i, j))
		}
		if i == 0 {
			require.Equal(t, d, active)
			continue
		}
		require.GreaterOrEqual(t, active, 1)
		require.LessOrEqual(t, active, d-1)
	}
}

func TestRidgeFitRecoversLinearModel(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
		2, 1,
		1, 3,
	})
	y := make([]float64, 6)
	w := make([]float64, 6)
	for i := range y {
		y[i] = 2 + 3*x.At(i, 0) - x.At(i, 1)
		w[i] = 1
	}

	coef, intercept, err := ridgeFit(x, y, w, 1e-9)
	require.NoError(t, err)
	require.InDelta(t, 3, coef[0], 1e-6)
	require.InDelta(t, -1, coef[1], 1e-6)
	require.InDelta(t, 2, intercept, 1e-6)
	require.InDelta(t, 1, weightedR2(x, y, w, coef, intercept), 1e-9)
}

func TestRidgeFitRejectsZeroWeights(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 1})
	_, _, err := ridgeFit(x, []float64{0, 1}, []float64{0, 0}, 1)
	require.Error(t, err)
}

func TestTextExplainFindsKeyword(t *testing.T) {
	scorer := &keywordScorer{keyword: "delve"}
	e := NewTextExplainer(zerolog.Nop(), scorer, LimeOptions{Seed: 42})

	exp, err := e.Explain(context.Background(), "We delve into the intricate tapestry of modern ideas.", 1)
	require.NoError(t, err)
	require.Len(t, scorer.texts, 1)
	require.Len(t, scorer.texts[0], DefaultSamples)
	require.NotEmpty(t, exp.Units)
	require.Equal(t, "delve", exp.Units[0].Name)
	require.Greater(t, exp.Units[0].Weight, 0.4)
	for _, u := range exp.Units[1:] {
		require.Less(t, math.Abs(u.Weight), 0.15)
	}
	require.Greater(t, exp.Score, 0.9)

	// the human class sees the same word as evidence against it
	exp, err = e.Explain(context.Background(), "We delve into the intricate tapestry of modern ideas.", 0)
	require.NoError(t, err)
	require.Equal(t, "delve", exp.Units[0].Name)
	require.Less(t, exp.Units[0].Weight, -0.4)
}

func TestTextExplainDeterministic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog while the cat sleeps soundly."
	opts := LimeOptions{Samples: 60, Features: 5, Seed: 11}

	a, err := NewTextExplainer(zerolog.Nop(), &keywordScorer{keyword: "fox"}, opts).Explain(context.Background(), text, 1)
	require.NoError(t, err)
	b, err := NewTextExplainer(zerolog.Nop(), &keywordScorer{keyword: "fox"}, opts).Explain(context.Background(), text, 1)
	require.NoError(t, err)

	require.Len(t, a.Units, 5)
	require.Equal(t, a.Units, b.Units)
	require.Equal(t, a.Intercept, b.Intercept)
}

func TestTextExplainConstantScoresAreFlat(t *testing.T) {
	exp, err := NewTextExplainer(zerolog.Nop(), &keywordScorer{}, LimeOptions{Seed: 1}).
		Explain(context.Background(), "The quick brown fox jumps over the lazy dog.", 1)
	require.NoError(t, err)
	for _, u := range exp.Units {
		require.InDelta(t, 0, u.Weight, 1e-9)
	}
	require.InDelta(t, 0.2, exp.Intercept, 1e-9)
}

func TestTextExplainFailures(t *testing.T) {
	ctx := context.Background()

	_, err := NewTextExplainer(zerolog.Nop(), &keywordScorer{}, LimeOptions{}).Explain(ctx, "hello", 1)
	require.ErrorContains(t, err, "at least two distinct words")

	_, err = NewTextExplainer(zerolog.Nop(), &keywordScorer{}, LimeOptions{}).Explain(ctx, "", 1)
	require.Error(t, err)

	_, err = NewTextExplainer(zerolog.Nop(), &keywordScorer{err: errors.New("batch failed")}, LimeOptions{}).
		Explain(ctx, "two words", 1)
	require.ErrorContains(t, err, "batch failed")

	_, err = NewTextExplainer(zerolog.Nop(), &keywordScorer{short: true}, LimeOptions{}).
		Explain(ctx, "two words", 1)
	require.ErrorContains(t, err, "rows")

	_, err = NewTextExplainer(zerolog.Nop(), &keywordScorer{}, LimeOptions{}).Explain(ctx, "two words", 2)
	require.Error(t, err)
}
