// Package detect orchestrates text, image and video detection requests and
// shapes their responses.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/cache"
	"github.com/kikiluvv/slopdetect/internal/classify"
	"github.com/kikiluvv/slopdetect/internal/explain"
	"github.com/kikiluvv/slopdetect/internal/faces"
	"github.com/kikiluvv/slopdetect/internal/ffmpeg"
	"github.com/kikiluvv/slopdetect/internal/store"
	"github.com/kikiluvv/slopdetect/internal/video"
	"github.com/rs/zerolog"
)

// SourceOpener opens a video file for sampling.
type SourceOpener func(path string) video.Source

// Deps are the collaborators a Pipeline is built from. Scorers are loaded
// once by the caller and shared by every request.
type Deps struct {
	Logger      zerolog.Logger
	FrameScorer ai.FrameScorer
	TextScorer  ai.TextScorer
	Faces       faces.Detector
	// FFmpeg backs video decoding unless OpenSource is set.
	FFmpeg     *ffmpeg.Executor
	OpenSource SourceOpener
	Store      store.Store
	Cache      cache.Cache
}

// Options tune the algorithms.
type Options struct {
	Frames      int
	PatchSize   int
	Lime        explain.LimeOptions
	JPEGQuality int
	TempDir     string
}

// Pipeline runs detection requests. It is safe for concurrent use.
type Pipeline struct {
	logger  zerolog.Logger
	deps    Deps
	opts    Options
	sampler *video.Sampler

	videoFrames *classify.FrameClassifier
	imageFrames *classify.FrameClassifier
	heatmap     *explain.HeatmapExplainer
	lime        *explain.TextExplainer
}

// New wires a pipeline. Missing optional collaborators get no-op versions.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Faces == nil {
		deps.Faces = faces.Nop{}
	}
	if deps.Store == nil {
		deps.Store = store.Noop{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	if deps.OpenSource == nil && deps.FFmpeg != nil {
		exec := deps.FFmpeg
		deps.OpenSource = func(path string) video.Source {
			return video.NewFFmpegSource(exec, path)
		}
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	logger := deps.Logger.With().Str("component", "pipeline").Logger()
	p := &Pipeline{
		logger:  logger,
		deps:    deps,
		opts:    opts,
		sampler: video.NewSampler(deps.Logger, opts.Frames),
	}

	if deps.FrameScorer != nil {
		p.videoFrames = classify.New(deps.Logger, deps.FrameScorer, deps.Faces, ai.DomainVideo, opts.JPEGQuality)
		p.imageFrames = classify.New(deps.Logger, deps.FrameScorer, deps.Faces, ai.DomainImage, opts.JPEGQuality)
		p.heatmap = explain.NewHeatmapExplainer(deps.Logger, deps.FrameScorer, opts.PatchSize)
	}
	if deps.TextScorer != nil {
		p.lime = explain.NewTextExplainer(deps.Logger, deps.TextScorer, opts.Lime)
	}
	return p
}

// Close releases every collaborator the pipeline was given.
func (p *Pipeline) Close() error {
	var errs []error
	if p.deps.FrameScorer != nil {
		errs = append(errs, p.deps.FrameScorer.Close())
	}
	if p.deps.TextScorer != nil {
		errs = append(errs, p.deps.TextScorer.Close())
	}
	errs = append(errs, p.deps.Store.Close(), p.deps.Cache.Close())
	return errors.Join(errs...)
}

// Ready reports which request kinds can be served.
func (p *Pipeline) Ready() map[string]bool {
	return map[string]bool{
		"text":  p.deps.TextScorer != nil,
		"image": p.deps.FrameScorer != nil,
		"video": p.deps.FrameScorer != nil && p.deps.OpenSource != nil,
	}
}

// History returns recently stored verdicts.
func (p *Pipeline) History(ctx context.Context, limit int) ([]store.Record, error) {
	return p.deps.Store.Recent(ctx, limit)
}

// recoverTo turns a panic into an InternalError on *err.
func (p *Pipeline) recoverTo(op string, err *error) {
	if r := recover(); r != nil {
		p.logger.Error().
			Str("op", op).
			Interface("panic", r).
			Bytes("stack", debug.Stack()).
			Msg("recovered from panic")
		*err = errorf(InternalError, "%v", r)
	}
}

// record saves a verdict; failures are logged and otherwise ignored.
func (p *Pipeline) record(ctx context.Context, rec *store.Record) {
	if err := p.deps.Store.Save(ctx, rec); err != nil {
		p.logger.Warn().Err(err).Str("kind", rec.Kind).Msg("failed to record detection")
	}
}

func errModelNotLoaded(kind string) *Error {
	return &Error{Kind: ScorerError, Message: fmt.Sprintf("%s model not loaded", kind)}
}
