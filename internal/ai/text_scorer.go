package ai

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXTextScorer vectorizes text with a vocabulary and runs the text
// classifier on whole batches.
type ONNXTextScorer struct {
	logger  zerolog.Logger
	opts    ModelOptions
	vocab   *Vocabulary
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// NewONNXTextScorer loads the classifier and its vocabulary.
func NewONNXTextScorer(logger zerolog.Logger, opts ModelOptions, vocab *Vocabulary) (*ONNXTextScorer, error) {
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
		return nil, fmt.Errorf("failed to create text model session: %w", err)
	}

	logger.Info().
		Str("model", opts.Path).
		Int("seq_len", vocab.SeqLen()).
		Msg("text model loaded")

	return &ONNXTextScorer{
		logger:  logger.With().Str("scorer", "text").Logger(),
		opts:    opts,
		vocab:   vocab,
		session: sess,
	}, nil
}

// ScoreBatch returns [P(human), P(ai)] for every text, in order.
func (s *ONNXTextScorer) ScoreBatch(ctx context.Context, texts []string) ([][2]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqLen := s.vocab.SeqLen()
	tokens := make([]int64, 0, len(texts)*seqLen)
	for _, t := range texts {
		tokens = append(tokens, s.vocab.Encode(t)...)
	}

	input, err := ort.NewTensor(ort.NewShape(int64(len(texts)), int64(seqLen)), tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create token tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.ArbitraryTensor{nil}

	s.mu.Lock()
	err = s.session.Run([]ort.ArbitraryTensor{input}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	return splitBatch(out.GetShape(), out.GetData(), len(texts), s.opts.Logits)
}

// splitBatch turns a [B] / [B,1] / [B,2] output into per-row probabilities.
func splitBatch(shape []int64, data []float32, batch int, logits bool) ([][2]float64, error) {
	cols := int64(1)
	switch {
	case len(shape) == 1 && shape[0] == int64(batch):
	case len(shape) == 2 && shape[0] == int64(batch):
		cols = shape[1]
	default:
		return nil, fmt.Errorf("unexpected batch output shape %v for %d inputs", shape, batch)
	}
	if int64(len(data)) != int64(batch)*cols {
		return nil, fmt.Errorf("output shape %v but %d values", shape, len(data))
	}

	rows := make([][2]float64, batch)
	for i := 0; i < batch; i++ {
		row := data[int64(i)*cols : int64(i+1)*cols]
		p, err := probabilityFromOutput([]int64{1, cols}, row, logits)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = [2]float64{1 - p, p}
	}
	return rows, nil
}

// Close releases the session and, if last, the runtime.
func (s *ONNXTextScorer) Close() error {
	s.logger.Info().Msg("closing text model session")
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			return err
		}
		s.session = nil
	}
	return releaseRuntime()
}
