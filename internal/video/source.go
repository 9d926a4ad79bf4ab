package video

import (
	"context"
	"image"

	"github.com/kikiluvv/slopdetect/internal/ffmpeg"
)

// FFmpegSource decodes frames from a file through ffprobe/ffmpeg.
type FFmpegSource struct {
	exec *ffmpeg.Executor
	path string
}

// NewFFmpegSource opens path for sampling. Nothing is read until first use.
func NewFFmpegSource(exec *ffmpeg.Executor, path string) *FFmpegSource {
	return &FFmpegSource{exec: exec, path: path}
}

// FrameCount probes the container for the number of video frames.
func (s *FFmpegSource) FrameCount(ctx context.Context) (int, error) {
	info, err := s.exec.ProbeVideo(ctx, s.path)
	if err != nil {
		return 0, err
	}
	return info.FrameCount, nil
}

// ReadFrame decodes the frame at index.
func (s *FFmpegSource) ReadFrame(ctx context.Context, index int) (image.Image, error) {
	return s.exec.ExtractFrame(ctx, s.path, index)
}
