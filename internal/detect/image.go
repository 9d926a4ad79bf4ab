package detect

import (
	"context"
	"fmt"
	"io"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/kikiluvv/slopdetect/internal/narrative"
	"github.com/kikiluvv/slopdetect/internal/store"
)

// Image classifies a single uploaded image and builds its heatmap.
func (p *Pipeline) Image(ctx context.Context, r io.Reader) (res *ImageResult, err error) {
	defer p.recoverTo("image", &err)

	if p.imageFrames == nil {
		return nil, errModelNotLoaded("image")
	}

	img, err := media.Decode(r)
	if err != nil {
		return nil, &Error{Kind: DecodeError, Message: "Could not read image file", Err: err}
	}
	frame := media.Canonicalize(img)

	pred, err := p.imageFrames.Classify(ctx, 1, frame.Tensor(), frame)
	if err != nil {
		return nil, newError(ScorerError, err)
	}

	lines := narrative.Build(narrative.Input{
		Domain:     ai.DomainImage,
		Positive:   pred.Result.Positive,
		Label:      pred.Result.Label,
		Confidence: pred.Result.Confidence,
		Faces:      len(pred.Faces),
	})

	heatmap, herr := p.heatmapURI(ctx, frame)
	if herr != nil {
		kind := KindOf(herr)
		p.logger.Warn().Err(herr).Str("kind", string(kind)).Msg("heatmap unavailable")
		if kind == AttributionError {
			lines = append(lines, fmt.Sprintf("Unable to generate heatmap: %s", herr))
		}
	}

	res = &ImageResult{
		Label:            pred.Result.Label,
		Confidence:       ai.Round4(pred.Result.Confidence),
		Image:            pred.Thumbnail,
		HeatmapImage:     heatmap,
		LimeExplanations: lines,
	}

	p.logger.Info().
		Str("label", res.Label).
		Float64("confidence", res.Confidence).
		Int("faces", len(pred.Faces)).
		Msg("image classified")

	p.record(ctx, &store.Record{Kind: "image", Label: res.Label, Confidence: res.Confidence})
	return res, nil
}

// heatmapURI falls back to the plain frame when attribution fails; the
// returned error then still reports the AttributionError.
func (p *Pipeline) heatmapURI(ctx context.Context, frame *media.Frame) (string, error) {
	var failure error
	src := frame.Image()

	hm, err := p.heatmap.Explain(ctx, frame)
	if err != nil {
		failure = newError(AttributionError, err)
	} else {
		src = hm.Image
	}

	uri, err := media.JPEGDataURI(src, p.jpegQuality())
	if err != nil {
		return "", newError(VisualizationError, err)
	}
	return uri, failure
}

func (p *Pipeline) jpegQuality() int {
	if q := p.opts.JPEGQuality; q >= 1 && q <= 100 {
		return q
	}
	return 90
}
