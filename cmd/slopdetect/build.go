package main

import (
	"context"
	"fmt"

	"github.com/kikiluvv/slopdetect/internal/ai"
	"github.com/kikiluvv/slopdetect/internal/cache"
	"github.com/kikiluvv/slopdetect/internal/config"
	"github.com/kikiluvv/slopdetect/internal/detect"
	"github.com/kikiluvv/slopdetect/internal/explain"
	"github.com/kikiluvv/slopdetect/internal/faces"
	"github.com/kikiluvv/slopdetect/internal/ffmpeg"
	"github.com/kikiluvv/slopdetect/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// need selects which collaborators a command loads.
type need uint8

const (
	needText need = 1 << iota
	needImage
	needVideo

	needAll = needText | needImage | needVideo
)

// buildPipeline loads models and backends. The server (needAll) tolerates
// missing pieces and reports them through /health; single-shot commands fail.
func buildPipeline(ctx context.Context, cfg *config.Config, n need) (*detect.Pipeline, error) {
	logger := log.Logger
	strict := n != needAll
	deps := detect.Deps{Logger: logger}

	soft := func(what string, err error) error {
		if strict {
			return fmt.Errorf("%s: %w", what, err)
		}
		logger.Warn().Err(err).Str("component", what).Msg("unavailable, continuing without it")
		return nil
	}

	if n&needText != 0 {
		scorer, err := loadTextScorer(logger, cfg)
		if err != nil {
			if err := soft("text model", err); err != nil {
				return nil, err
			}
		} else {
			deps.TextScorer = scorer
		}
	}

	if n&(needImage|needVideo) != 0 {
		scorer, err := ai.NewONNXFrameScorer(logger, ai.ModelOptions{
			RuntimeLibrary: cfg.Models.RuntimeLibrary,
			Path:           cfg.Models.VideoModel,
			Input:          cfg.Models.VideoInput,
			Output:         cfg.Models.VideoOutput,
			Logits:         cfg.Models.VideoLogits,
		})
		if err != nil {
			if err := soft("frame model", err); err != nil {
				return nil, err
			}
		} else {
			deps.FrameScorer = scorer
		}

		// Face boxes are decoration; a missing cascade only disables them.
		det, err := faces.NewPigoDetector(logger, cfg.Faces.Cascade, faces.Options{
			MinSize:      cfg.Faces.MinSize,
			MaxSize:      cfg.Faces.MaxSize,
			ShiftFactor:  cfg.Faces.ShiftFactor,
			ScaleFactor:  cfg.Faces.ScaleFactor,
			MinQuality:   cfg.Faces.MinQuality,
			IoUThreshold: cfg.Faces.IoUThreshold,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("face detection disabled")
		} else {
			deps.Faces = det
		}
	}

	if n&needVideo != 0 {
		exec, err := ffmpeg.New(logger, cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.Threads)
		if err != nil {
			if err := soft("ffmpeg", err); err != nil {
				return nil, err
			}
		} else {
			deps.FFmpeg = exec
		}
	}

	if cfg.Storage.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, logger, cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Warn().Err(err).Msg("history storage disabled")
		} else {
			deps.Store = pg
		}
	}

	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(logger, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			logger.Warn().Err(err).Msg("result cache disabled")
		} else {
			deps.Cache = rc
		}
	}

	return detect.New(deps, detect.Options{
		Frames:    cfg.Video.Frames,
		PatchSize: cfg.Attribution.PatchSize,
		Lime: explain.LimeOptions{
			Samples:     cfg.Attribution.Samples,
			Features:    cfg.Attribution.Features,
			KernelWidth: float64(cfg.Attribution.KernelWidth),
			Seed:        cfg.Attribution.Seed,
		},
		JPEGQuality: cfg.FFmpeg.JPEGQuality,
		TempDir:     cfg.TempDir,
	}), nil
}

func loadTextScorer(logger zerolog.Logger, cfg *config.Config) (*ai.ONNXTextScorer, error) {
	vocab, err := ai.LoadVocabulary(cfg.Models.TextVocab, cfg.Models.TextSeqLen)
	if err != nil {
		return nil, err
	}
	return ai.NewONNXTextScorer(logger, ai.ModelOptions{
		RuntimeLibrary: cfg.Models.RuntimeLibrary,
		Path:           cfg.Models.TextModel,
		Input:          cfg.Models.TextInput,
		Output:         cfg.Models.TextOutput,
		Logits:         cfg.Models.TextLogits,
	}, vocab)
}
