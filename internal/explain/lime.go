package explain

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultSamples     = 100
	DefaultFeatures    = 10
	DefaultKernelWidth = 25.0

	selectionAlpha = 0.01
	surrogateAlpha = 1.0
)

// LimeOptions configures the text explainer.
type LimeOptions struct {
	Samples     int
	Features    int
	KernelWidth float64
	Seed        int64
}

func (o LimeOptions) withDefaults() LimeOptions {
	if o.Samples < 2 {
		o.Samples = DefaultSamples
	}
	if o.Features < 1 {
		o.Features = DefaultFeatures
	}
	if o.KernelWidth <= 0 {
		o.KernelWidth = DefaultKernelWidth
	}
	return o
}

// TextExplanation is the local surrogate fitted around one text.
type TextExplanation struct {
	// Units are the selected words ordered by |weight|, largest first.
	Units     []Unit
	Score     float64
	Intercept float64
}

// TextExplainer estimates word importance by dropping random subsets of
// words, re-scoring, and fitting a weighted linear model.
type TextExplainer struct {
	logger zerolog.Logger
	scorer ai.TextScorer
	opts   LimeOptions
}

// NewTextExplainer fills unset options with defaults.
func NewTextExplainer(logger zerolog.Logger, scorer ai.TextScorer, opts LimeOptions) *TextExplainer {
	return &TextExplainer{
		logger: logger.With().Str("component", "lime").Logger(),
		scorer: scorer,
		opts:   opts.withDefaults(),
	}
}

// Explain attributes the probability of the given class (1 = AI, 0 = human)
// to the words of text. Identical text and seed give identical weights.
func (e *TextExplainer) Explain(ctx context.Context, text string, class int) (*TextExplanation, error) {
	if class != 0 && class != 1 {
		return nil, fmt.Errorf("class must be 0 or 1, got %d", class)
	}

	it := indexText(text)
	d := it.numWords()
	if d < 2 {
		return nil, fmt.Errorf("need at least two distinct words to explain, got %d", d)
	}

	data, texts := perturb(it, e.opts.Samples, rand.New(rand.NewSource(e.opts.Seed)))

	probs, err := e.scorer.ScoreBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("score perturbations: %w", err)
	}
	if len(probs) != len(texts) {
		return nil, fmt.Errorf("scorer returned %d rows for %d perturbations", len(probs), len(texts))
	}

	y := make([]float64, len(probs))
	for i, row := range probs {
		y[i] = row[class]
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("non-finite score for perturbation %d", i)
		}
	}

	w := kernelWeights(data, e.opts.KernelWidth)

	used, err := selectFeatures(data, y, w, e.opts.Features)
	if err != nil {
		return nil, err
	}

	sub := columns(data, used)
	coef, intercept, err := ridgeFit(sub, y, w, surrogateAlpha)
	if err != nil {
		return nil, err
	}

	units := make([]Unit, len(used))
	for k, j := range used {
		units[k] = Unit{Name: it.vocab[j], Weight: coef[k]}
	}
	sortByMagnitude(units)

	exp := &TextExplanation{
		Units:     units,
		Score:     weightedR2(sub, y, w, coef, intercept),
		Intercept: intercept,
	}

	e.logger.Debug().
		Int("words", d).
		Int("samples", len(texts)).
		Float64("score", exp.Score).
		Msg("text explanation fitted")
	return exp, nil
}

// perturb builds the binary presence matrix and the matching texts. Row 0 is
// the untouched text; every other row drops between 1 and d-1 words.
func perturb(it *indexedText, samples int, rng *rand.Rand) (*mat.Dense, []string) {
	d := it.numWords()
	data := mat.NewDense(samples, d, nil)
	texts := make([]string, samples)

	for i := 0; i < samples; i++ {
		for j := 0; j < d; j++ {
			data.Set(i, j, 1)
		}
	}
	texts[0] = it.without(nil)

	for i := 1; i < samples; i++ {
		k := 1 + rng.Intn(d-1)
		removed := make(map[int]bool, k)
		for _, j := range rng.Perm(d)[:k] {
			removed[j] = true
			data.Set(i, j, 0)
		}
		texts[i] = it.without(removed)
	}
	return data, texts
}

// kernelWeights applies an exponential kernel to 100x the cosine distance
// between each row and the original (row 0).
func kernelWeights(data *mat.Dense, width float64) []float64 {
	n, _ := data.Dims()
	orig := data.RawRowView(0)
	w := make([]float64, n)

	for i := 0; i < n; i++ {
		dist := cosineDistance(data.RawRowView(i), orig) * 100
		w[i] = math.Sqrt(math.Exp(-(dist * dist) / (width * width)))
	}
	return w
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// selectFeatures keeps the k columns with the largest coefficients of a
// lightly regularized fit over all columns.
func selectFeatures(data *mat.Dense, y, w []float64, k int) ([]int, error) {
	_, d := data.Dims()
	if k >= d {
		all := make([]int, d)
		for j := range all {
			all[j] = j
		}
		return all, nil
	}

	coef, _, err := ridgeFit(data, y, w, selectionAlpha)
	if err != nil {
		return nil, fmt.Errorf("feature selection: %w", err)
	}

	order := make([]int, d)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(coef[order[a]]) > math.Abs(coef[order[b]])
	})
	return order[:k], nil
}
