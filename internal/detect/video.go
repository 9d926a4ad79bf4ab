package detect

import (
	"context"
	"errors"
	"io"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/store"
	"github.com/kikiluvv/slopdetect/internal/verdict"
	"github.com/kikiluvv/slopdetect/internal/video"
	"github.com/kikiluvv/slopdetect/pkg/util"
)

// Video stores the upload in a temp file, which is removed on every exit
// path, and classifies it.
func (p *Pipeline) Video(ctx context.Context, r io.Reader) (res *VideoResult, err error) {
	defer p.recoverTo("video", &err)

	if err := p.videoReady(); err != nil {
		return nil, err
	}

	path, err := util.WriteTemp(p.opts.TempDir, "upload-", ".mp4", r)
	if err != nil {
		return nil, errorf(DecodeError, "failed to store upload: %v", err)
	}
	defer util.CleanupFiles(path)

	return p.VideoFile(ctx, path)
}

// VideoFile classifies sampled frames of a video on disk and aggregates them.
func (p *Pipeline) VideoFile(ctx context.Context, path string) (res *VideoResult, err error) {
	defer p.recoverTo("video", &err)

	if err := p.videoReady(); err != nil {
		return nil, err
	}

	samples, err := p.sampler.Sample(ctx, p.deps.OpenSource(path))
	if err != nil {
		if errors.Is(err, video.ErrNotEnoughFrames) {
			return nil, newError(DecodeError, err)
		}
		return nil, errorf(DecodeError, "decode video: %v", err)
	}

	frames := make([]FrameResult, 0, len(samples))
	votes := make([]verdict.Vote, 0, len(samples))

	for i, s := range samples {
		pred, err := p.videoFrames.Classify(ctx, i+1, s.Tensor, s.Frame)
		if err != nil {
			return nil, newError(ScorerError, err)
		}

		fr := FrameResult{
			Frame:      pred.Frame,
			Label:      pred.Result.Label,
			Confidence: ai.Round4(pred.Result.Confidence),
			Thumbnail:  pred.Thumbnail,
		}
		frames = append(frames, fr)
		votes = append(votes, verdict.Vote{Label: fr.Label, Confidence: fr.Confidence})
	}

	res = &VideoResult{
		FramePredictions: frames,
		Final:            verdict.Aggregate(votes),
	}

	p.logger.Info().
		Int("frames", len(frames)).
		Str("label", res.Final.Label).
		Float64("confidence", res.Final.Confidence).
		Msg("video classified")

	recFrames := make([]store.FrameRecord, len(frames))
	for i, f := range frames {
		recFrames[i] = store.FrameRecord{Frame: f.Frame, Label: f.Label, Confidence: f.Confidence}
	}
	p.record(ctx, &store.Record{
		Kind:       "video",
		Label:      res.Final.Label,
		Confidence: res.Final.Confidence,
		Frames:     recFrames,
	})
	return res, nil
}

func (p *Pipeline) videoReady() error {
	if p.videoFrames == nil {
		return errModelNotLoaded("video")
	}
	if p.deps.OpenSource == nil {
		return &Error{Kind: DecodeError, Message: "video decoding unavailable: ffmpeg not configured"}
	}
	return nil
}
