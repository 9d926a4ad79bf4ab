package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Canonical frame edge length expected by the vision model.
const FrameSize = 224

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir string `yaml:"temp_dir"`

	Server      ServerConfig      `yaml:"server"`
	Models      ModelConfig       `yaml:"models"`
	Video       VideoConfig       `yaml:"video"`
	Attribution AttributionConfig `yaml:"attribution"`
	Faces       FaceConfig        `yaml:"faces"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
	Storage     StorageConfig     `yaml:"storage"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port          string `yaml:"port"`
	BodyLimitMB   int    `yaml:"body_limit_mb"`
	AllowOrigins  string `yaml:"allow_origins"`
	ShutdownGrace int    `yaml:"shutdown_grace_seconds"`
}

type ModelConfig struct {
	// Shared library for onnxruntime; empty uses the platform default.
	RuntimeLibrary string `yaml:"runtime_library"`
	VideoModel     string `yaml:"video_model"`
	VideoInput     string `yaml:"video_input"`
	VideoOutput    string `yaml:"video_output"`
	VideoLogits    bool   `yaml:"video_logits"`
	TextModel      string `yaml:"text_model"`
	TextVocab      string `yaml:"text_vocab"`
	TextInput      string `yaml:"text_input"`
	TextOutput     string `yaml:"text_output"`
	TextLogits     bool   `yaml:"text_logits"`
	TextSeqLen     int    `yaml:"text_sequence_length"`
}

type VideoConfig struct {
	Frames int `yaml:"frames"`
}

type AttributionConfig struct {
	PatchSize   int   `yaml:"patch_size"`
	Samples     int   `yaml:"samples"`
	Features    int   `yaml:"features"`
	KernelWidth int   `yaml:"kernel_width"`
	Seed        int64 `yaml:"seed"`
}

type FaceConfig struct {
	Cascade      string  `yaml:"cascade"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinQuality   float32 `yaml:"min_quality"`
	IoUThreshold float64 `yaml:"iou_threshold"`
}

type FFmpegConfig struct {
	BinaryPath  string `yaml:"binary_path"`
	ProbePath   string `yaml:"probe_path"`
	Threads     int    `yaml:"threads"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads configuration from file or returns defaults.
// Environment variables (optionally from a .env file) override file values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	_ = godotenv.Load()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the pipeline cannot work with
func (c *Config) Validate() error {
	if c.Video.Frames < 1 {
		return fmt.Errorf("video.frames must be at least 1, got %d", c.Video.Frames)
	}
	p := c.Attribution.PatchSize
	if p <= 0 || FrameSize%p != 0 {
		return fmt.Errorf("attribution.patch_size must divide %d, got %d", FrameSize, p)
	}
	if c.Attribution.Samples < 2 {
		return fmt.Errorf("attribution.samples must be at least 2, got %d", c.Attribution.Samples)
	}
	if c.Attribution.Features < 1 {
		return fmt.Errorf("attribution.features must be at least 1, got %d", c.Attribution.Features)
	}
	if c.Attribution.KernelWidth <= 0 {
		return fmt.Errorf("attribution.kernel_width must be positive, got %d", c.Attribution.KernelWidth)
	}
	if c.Models.TextSeqLen < 1 {
		return fmt.Errorf("models.text_sequence_length must be positive, got %d", c.Models.TextSeqLen)
	}
	if q := c.FFmpeg.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("ffmpeg.jpeg_quality must be in [1,100], got %d", q)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		TempDir: os.TempDir(),
		Server: ServerConfig{
			Port:          "8000",
			BodyLimitMB:   512,
			AllowOrigins:  "*",
			ShutdownGrace: 10,
		},
		Models: ModelConfig{
			VideoModel:  "./models/video/resnext_lstm.onnx",
			VideoInput:  "frames",
			VideoOutput: "logits",
			TextModel:   "./models/text/ai_text_model.onnx",
			TextVocab:   "./models/text/vocab.txt",
			TextInput:   "tokens",
			TextOutput:  "predictions",
			TextSeqLen:  256,
		},
		Video: VideoConfig{
			Frames: 16,
		},
		Attribution: AttributionConfig{
			PatchSize:   56,
			Samples:     100,
			Features:    10,
			KernelWidth: 25,
			Seed:        42,
		},
		Faces: FaceConfig{
			Cascade:      "./models/faces/facefinder",
			MinSize:      20,
			MaxSize:      224,
			ShiftFactor:  0.1,
			ScaleFactor:  1.1,
			MinQuality:   5.0,
			IoUThreshold: 0.2,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath:  "ffmpeg",
			ProbePath:   "ffprobe",
			Threads:     0,
			JPEGQuality: 90,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SLOPDETECT_PORT")
	setString(&cfg.Models.RuntimeLibrary, "SLOPDETECT_ONNX_LIB")
	setString(&cfg.Models.VideoModel, "SLOPDETECT_VIDEO_MODEL")
	setString(&cfg.Models.TextModel, "SLOPDETECT_TEXT_MODEL")
	setString(&cfg.Models.TextVocab, "SLOPDETECT_TEXT_VOCAB")
	setString(&cfg.Faces.Cascade, "SLOPDETECT_FACE_CASCADE")
	setString(&cfg.Storage.DatabaseURL, "SLOPDETECT_DATABASE_URL")
	setString(&cfg.Cache.RedisURL, "SLOPDETECT_REDIS_URL")
	setString(&cfg.Log.Level, "SLOPDETECT_LOG_LEVEL")
	setString(&cfg.TempDir, "SLOPDETECT_TEMP_DIR")

	if v := os.Getenv("SLOPDETECT_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Video.Frames = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".slopdetect", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
