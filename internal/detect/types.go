package detect

import "github.com/kikiluvv/slopdetect/internal/verdict"

// TextResult is returned by /predict and /text-detect.
type TextResult struct {
	Label            string             `json:"label"`
	Confidence       float64            `json:"confidence"`
	LimeExplanations []string           `json:"lime_explanations,omitempty"`
	FeatureWeights   map[string]float64 `json:"feature_weights,omitempty"`
}

// ImageResult is returned by /image-detect.
type ImageResult struct {
	Label            string   `json:"label"`
	Confidence       float64  `json:"confidence"`
	Image            string   `json:"image"`
	HeatmapImage     string   `json:"heatmap_image"`
	LimeExplanations []string `json:"lime_explanations"`
}

// FrameResult is one entry of frame_predictions.
type FrameResult struct {
	Frame      int     `json:"frame"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Thumbnail  string  `json:"thumbnail"`
}

// VideoResult is returned by /video-detect.
type VideoResult struct {
	FramePredictions []FrameResult `json:"frame_predictions"`
	Final            verdict.Final `json:"final"`
}

// ErrorResponse is the only body sent when a request fails.
type ErrorResponse struct {
	Error string `json:"error"`
}
