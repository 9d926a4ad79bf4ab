package detect

import (
	"context"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/cache"
	"github.com/kikiluvv/slopdetect/internal/narrative"
	"github.com/kikiluvv/slopdetect/internal/store"
)

// Predict returns the verdict for text without explanations.
func (p *Pipeline) Predict(ctx context.Context, text string) (*TextResult, error) {
	return p.Text(ctx, text, false)
}

// Text classifies text and, when explain is set, attributes the verdict to
// its words. Attribution failures degrade to a fallback explanation.
func (p *Pipeline) Text(ctx context.Context, text string, explainIt bool) (res *TextResult, err error) {
	defer p.recoverTo("text", &err)

	if p.deps.TextScorer == nil {
		return nil, errModelNotLoaded("text")
	}

	key := cache.TextKey(text, explainIt)
	var cached TextResult
	if found, cerr := p.deps.Cache.Get(ctx, key, &cached); cerr != nil {
		p.logger.Warn().Err(cerr).Msg("cache lookup failed")
	} else if found {
		p.logger.Debug().Msg("text verdict served from cache")
		p.record(ctx, &store.Record{Kind: "text", Label: cached.Label, Confidence: cached.Confidence})
		return &cached, nil
	}

	probs, err := p.deps.TextScorer.ScoreBatch(ctx, []string{text})
	if err != nil {
		return nil, newError(ScorerError, err)
	}
	if len(probs) != 1 {
		return nil, errorf(ScorerError, "text model returned %d rows for 1 input", len(probs))
	}

	score, err := ai.Classify(probs[0][1], ai.DomainText)
	if err != nil {
		return nil, newError(ScorerError, err)
	}

	res = &TextResult{
		Label:      score.Label,
		Confidence: ai.Round4(score.Confidence),
	}

	cacheable := true
	if explainIt {
		cacheable = p.explainText(ctx, text, score, res)
	}

	p.logger.Info().
		Str("label", res.Label).
		Float64("confidence", res.Confidence).
		Bool("explain", explainIt).
		Int("chars", len(text)).
		Msg("text classified")

	p.record(ctx, &store.Record{Kind: "text", Label: res.Label, Confidence: res.Confidence})
	// A fallback explanation is not cached so the next request retries attribution.
	if cacheable {
		if cerr := p.deps.Cache.Set(ctx, key, res); cerr != nil {
			p.logger.Warn().Err(cerr).Msg("cache store failed")
		}
	}
	return res, nil
}

// explainText fills the explanation fields and reports whether attribution
// succeeded.
func (p *Pipeline) explainText(ctx context.Context, text string, score ai.ScoreResult, res *TextResult) bool {
	class := 0
	if score.Positive {
		class = 1
	}

	exp, err := p.lime.Explain(ctx, text, class)
	if err != nil {
		aerr := newError(AttributionError, err)
		p.logger.Warn().Err(aerr).Str("kind", string(aerr.Kind)).Msg("text explanation failed")
		res.LimeExplanations = narrative.Fallback(score.Label, err)
		return false
	}

	res.FeatureWeights = make(map[string]float64, len(exp.Units))
	for _, u := range exp.Units {
		res.FeatureWeights[u.Name] = u.Weight
	}
	res.LimeExplanations = narrative.Build(narrative.Input{
		Domain:     ai.DomainText,
		Positive:   score.Positive,
		Label:      score.Label,
		Confidence: score.Confidence,
		Units:      exp.Units,
		Text:       text,
	})
	return true
}
