package ai

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ModelOptions locates an ONNX model and names its single input and output.
type ModelOptions struct {
	RuntimeLibrary string
	Path           string
	Input          string
	Output         string
	// Logits marks outputs that still need sigmoid/softmax.
	Logits bool
}

// ONNXFrameScorer runs the CNN+LSTM deepfake model on one frame at a time,
// fed as a (1, 1, 3, 224, 224) sequence of length one.
type ONNXFrameScorer struct {
	logger  zerolog.Logger
	opts    ModelOptions
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// NewONNXFrameScorer loads the model once; the session is shared by all requests.
func NewONNXFrameScorer(logger zerolog.Logger, opts ModelOptions) (*ONNXFrameScorer, error) {
	if _, err := os.Stat(opts.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", opts.Path)
	}

	if err := acquireRuntime(opts.RuntimeLibrary); err != nil {
		return nil, err
	}

	sess, err := ort.NewDynamicAdvancedSession(
		opts.Path,
		[]string{opts.Input},
		[]string{opts.Output},
		nil,
	)
	if err != nil {
		_ = releaseRuntime()
		return nil, fmt.Errorf("failed to create frame model session: %w", err)
	}

	logger.Info().
		Str("model", opts.Path).
		Str("input", opts.Input).
		Str("output", opts.Output).
		Bool("logits", opts.Logits).
		Msg("frame model loaded")

	return &ONNXFrameScorer{
		logger:  logger.With().Str("scorer", "frame").Logger(),
		opts:    opts,
		session: sess,
	}, nil
}

// Score runs one inference and returns P(fake).
func (s *ONNXFrameScorer) Score(ctx context.Context, t media.Tensor) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	input, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	// nil output lets onnxruntime allocate whatever shape the head produces
	outputs := []ort.ArbitraryTensor{nil}

	s.mu.Lock()
	err = s.session.Run([]ort.ArbitraryTensor{input}, outputs)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("frame inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	p, err := probabilityFromOutput(out.GetShape(), out.GetData(), s.opts.Logits)
	if err != nil {
		return 0, err
	}

	s.logger.Debug().Float64("probability", p).Msg("frame scored")
	return p, nil
}

// Close releases the session and, if last, the runtime.
func (s *ONNXFrameScorer) Close() error {
	s.logger.Info().Msg("closing frame model session")
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			return err
		}
		s.session = nil
	}
	return releaseRuntime()
}
