package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
)

// ExtractFrame seeks to the frame with the given decode index and returns it
// as an image. The frame keeps its native resolution.
func (e *Executor) ExtractFrame(ctx context.Context, input string, index int) (image.Image, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if index < 0 {
		return nil, fmt.Errorf("invalid frame index %d", index)
	}

	filter := NewFilterBuilder().
		SelectFrame(index).
		PixelFormat("rgb24").
		Build()

	args := []string{
		"-i", input,
		"-vf", filter,
		"-vsync", "0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}

	data, err := e.Output(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("extract frame %d: %w", index, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("extract frame %d: no frame decoded", index)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", index, err)
	}

	e.logger.Debug().Int("index", index).Str("input", input).Msg("frame extracted")
	return img, nil
}
