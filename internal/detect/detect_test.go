package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/kikiluvv/slopdetect/internal/explain"
	"github.com/kikiluvv/slopdetect/internal/media"
	"github.com/kikiluvv/slopdetect/internal/store"
	"github.com/kikiluvv/slopdetect/internal/video"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeFrameScorer struct {
	mu        sync.Mutex
	p         float64
	failAfter int // fail every call after this many; 0 never fails
	panics    bool
	calls     int
}

func (s *fakeFrameScorer) Score(context.Context, media.Tensor) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panics {
		panic("tensor shape mismatch")
	}
	if s.failAfter > 0 && s.calls > s.failAfter {
		return 0, errors.New("inference failed")
	}
	return s.p, nil
}

func (s *fakeFrameScorer) Close() error { return nil }

type fakeTextScorer struct {
	p       float64
	keyword string
	err     error
	calls   int
}

func (s *fakeTextScorer) ScoreBatch(_ context.Context, texts []string) ([][2]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	rows := make([][2]float64, len(texts))
	for i, t := range texts {
		p := s.p
		if s.keyword != "" && strings.Contains(t, s.keyword) {
			p = 0.95
		}
		rows[i] = [2]float64{1 - p, p}
	}
	return rows, nil
}

func (s *fakeTextScorer) Close() error { return nil }

// flakyTextScorer fails its first multi-text batch, as a timeout during
// attribution would, and behaves like fakeTextScorer afterwards.
type flakyTextScorer struct {
	fakeTextScorer
	batchCalls int
}

func (s *flakyTextScorer) ScoreBatch(ctx context.Context, texts []string) ([][2]float64, error) {
	if len(texts) > 1 {
		s.batchCalls++
		if s.batchCalls == 1 {
			return nil, errors.New("transient timeout")
		}
	}
	return s.fakeTextScorer.ScoreBatch(ctx, texts)
}

type memCache struct{ data map[string][]byte }

func (c *memCache) Get(_ context.Context, key string, target any) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, target)
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Close() error { return nil }

type memStore struct{ recs []store.Record }

func (s *memStore) Save(_ context.Context, rec *store.Record) error {
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *memStore) Recent(context.Context, int) ([]store.Record, error) { return s.recs, nil }
func (s *memStore) Close() error                                        { return nil }

// fileSource reports a frame count derived from the file size so that empty
// uploads behave like unreadable videos.
type fileSource struct {
	path  string
	total int
}

func (f *fileSource) FrameCount(context.Context) (int, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}
	return f.total, nil
}

func (f *fileSource) ReadFrame(_ context.Context, index int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = uint8(index), 255
	}
	return img, nil
}

func newPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	deps.Logger = zerolog.Nop()
	if deps.OpenSource == nil {
		deps.OpenSource = func(path string) video.Source { return &fileSource{path: path, total: 40} }
	}
	return New(deps, Options{
		Frames:    16,
		PatchSize: 56,
		Lime:      explain.LimeOptions{Samples: 100, Features: 10, Seed: 42},
		TempDir:   t.TempDir(),
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTextScenario(t *testing.T) {
	st := &memStore{}
	p := newPipeline(t, Deps{TextScorer: &fakeTextScorer{p: 0.3}, Store: st})

	res, err := p.Predict(context.Background(), "The quick brown fox jumps over the lazy dog.")
	require.NoError(t, err)
	require.Equal(t, "Human-written", res.Label)
	require.Equal(t, 0.7, res.Confidence)
	require.Nil(t, res.LimeExplanations)
	require.Nil(t, res.FeatureWeights)

	require.Len(t, st.recs, 1)
	require.Equal(t, "text", st.recs[0].Kind)
}

func TestTextWithExplanation(t *testing.T) {
	p := newPipeline(t, Deps{TextScorer: &fakeTextScorer{p: 0.2, keyword: "delve"}})

	res, err := p.Text(context.Background(), "Let us delve into the rich tapestry of modern ideas.", true)
	require.NoError(t, err)
	require.Equal(t, "AI-generated", res.Label)
	require.Equal(t, 0.95, res.Confidence)
	require.NotEmpty(t, res.FeatureWeights)
	require.Greater(t, res.FeatureWeights["delve"], 0.0)
	require.Equal(t, "Model detected AI-generated content with 95% confidence", res.LimeExplanations[0])

	var indicator string
	for _, line := range res.LimeExplanations {
		if strings.HasPrefix(line, "Key indicators of AI generation: ") {
			indicator = line
		}
	}
	require.True(t, strings.HasPrefix(indicator, "Key indicators of AI generation: delve"), indicator)
}

func TestTextExplanationFallback(t *testing.T) {
	p := newPipeline(t, Deps{TextScorer: &fakeTextScorer{p: 0.9}})

	res, err := p.Text(context.Background(), "hello", true)
	require.NoError(t, err)
	require.Equal(t, "AI-generated", res.Label)
	require.Nil(t, res.FeatureWeights)
	require.Len(t, res.LimeExplanations, 2)
	require.Equal(t, "Model detected AI-generated content", res.LimeExplanations[0])
	require.True(t, strings.HasPrefix(res.LimeExplanations[1], "Unable to generate detailed explanations: "))
}

func TestTextScorerError(t *testing.T) {
	p := newPipeline(t, Deps{TextScorer: &fakeTextScorer{err: errors.New("session closed")}})

	_, err := p.Text(context.Background(), "anything", false)
	require.Equal(t, ScorerError, KindOf(err))
	require.EqualError(t, err, "session closed")
}

func TestTextCache(t *testing.T) {
	scorer := &fakeTextScorer{p: 0.8}
	p := newPipeline(t, Deps{TextScorer: scorer, Cache: &memCache{data: map[string][]byte{}}})

	first, err := p.Text(context.Background(), "cached text", false)
	require.NoError(t, err)
	second, err := p.Text(context.Background(), "cached text", false)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, scorer.calls)

	_, err = p.Text(context.Background(), "cached text", true)
	require.NoError(t, err)
	require.Greater(t, scorer.calls, 1)
}

func TestTextFallbackIsNotCached(t *testing.T) {
	scorer := &flakyTextScorer{fakeTextScorer: fakeTextScorer{p: 0.2, keyword: "delve"}}
	p := newPipeline(t, Deps{TextScorer: scorer, Cache: &memCache{data: map[string][]byte{}}})
	text := "Let us delve into the rich tapestry of modern ideas."

	first, err := p.Text(context.Background(), text, true)
	require.NoError(t, err)
	require.Nil(t, first.FeatureWeights)
	require.True(t, strings.HasPrefix(first.LimeExplanations[1], "Unable to generate detailed explanations: "))

	second, err := p.Text(context.Background(), text, true)
	require.NoError(t, err)
	require.Equal(t, 2, scorer.batchCalls)
	require.NotEmpty(t, second.FeatureWeights)
	require.Greater(t, second.FeatureWeights["delve"], 0.0)

	third, err := p.Text(context.Background(), text, true)
	require.NoError(t, err)
	require.Equal(t, 2, scorer.batchCalls)
	require.Equal(t, second, third)
}

func TestTextCacheHitIsRecorded(t *testing.T) {
	scorer := &fakeTextScorer{p: 0.8}
	st := &memStore{}
	p := newPipeline(t, Deps{TextScorer: scorer, Store: st, Cache: &memCache{data: map[string][]byte{}}})

	for i := 0; i < 2; i++ {
		_, err := p.Predict(context.Background(), "seen twice")
		require.NoError(t, err)
	}

	require.Equal(t, 1, scorer.calls)
	require.Len(t, st.recs, 2)
	require.Equal(t, st.recs[0].Label, st.recs[1].Label)
	require.Equal(t, 0.8, st.recs[1].Confidence)
}

func TestModelNotLoaded(t *testing.T) {
	p := newPipeline(t, Deps{})

	_, err := p.Text(context.Background(), "x", false)
	require.Equal(t, ScorerError, KindOf(err))

	_, err = p.Image(context.Background(), bytes.NewReader(pngBytes(t)))
	require.Equal(t, ScorerError, KindOf(err))

	_, err = p.Video(context.Background(), strings.NewReader("data"))
	require.Equal(t, ScorerError, KindOf(err))

	require.Equal(t, map[string]bool{"text": false, "image": false, "video": false}, p.Ready())
}

func TestImage(t *testing.T) {
	st := &memStore{}
	scorer := &fakeFrameScorer{p: 0.9}
	p := newPipeline(t, Deps{FrameScorer: scorer, Store: st})

	res, err := p.Image(context.Background(), bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	require.Equal(t, "AI-generated", res.Label)
	require.Equal(t, 0.9, res.Confidence)
	require.True(t, strings.HasPrefix(res.Image, "data:image/jpeg;base64,"))
	require.True(t, strings.HasPrefix(res.HeatmapImage, "data:image/jpeg;base64,"))
	require.Equal(t, []string{
		"Model detected AI-generated content with 90% confidence",
		"No faces detected - examine overall image consistency",
		"High confidence in AI generation detection",
		"Check for unnatural textures and inconsistent lighting",
	}, res.LimeExplanations)

	// one full-frame score plus sixteen patches
	require.Equal(t, 17, scorer.calls)
	require.Len(t, st.recs, 1)
}

func TestImageHeatmapFailureDegrades(t *testing.T) {
	p := newPipeline(t, Deps{FrameScorer: &fakeFrameScorer{p: 0.1, failAfter: 1}})

	res, err := p.Image(context.Background(), bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	require.Equal(t, "Real", res.Label)
	require.NotEmpty(t, res.HeatmapImage)
	last := res.LimeExplanations[len(res.LimeExplanations)-1]
	require.True(t, strings.HasPrefix(last, "Unable to generate heatmap: "))
}

func TestImageDecodeError(t *testing.T) {
	p := newPipeline(t, Deps{FrameScorer: &fakeFrameScorer{p: 0.5}})

	_, err := p.Image(context.Background(), strings.NewReader("definitely not an image"))
	require.Equal(t, DecodeError, KindOf(err))
	require.EqualError(t, err, "Could not read image file")
}

func TestVideo(t *testing.T) {
	st := &memStore{}
	tmp := t.TempDir()
	p := New(Deps{
		Logger:      zerolog.Nop(),
		FrameScorer: &fakeFrameScorer{p: 0.8},
		Store:       st,
		OpenSource:  func(path string) video.Source { return &fileSource{path: path, total: 40} },
	}, Options{Frames: 16, TempDir: tmp})

	res, err := p.Video(context.Background(), strings.NewReader("not empty"))
	require.NoError(t, err)
	require.Len(t, res.FramePredictions, 16)
	for i, f := range res.FramePredictions {
		require.Equal(t, i+1, f.Frame)
		require.Equal(t, "Fake", f.Label)
		require.Equal(t, 0.8, f.Confidence)
		require.True(t, strings.HasPrefix(f.Thumbnail, "data:image/jpeg;base64,"))
	}
	require.Equal(t, "Fake", res.Final.Label)
	require.Equal(t, 0.8, res.Final.Confidence)

	require.Len(t, st.recs, 1)
	require.Len(t, st.recs[0].Frames, 16)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries, "upload must be removed")
}

func TestVideoEmptyUpload(t *testing.T) {
	tmp := t.TempDir()
	p := New(Deps{
		Logger:      zerolog.Nop(),
		FrameScorer: &fakeFrameScorer{p: 0.8},
		OpenSource:  func(path string) video.Source { return &fileSource{path: path, total: 40} },
	}, Options{Frames: 16, TempDir: tmp})

	res, err := p.Video(context.Background(), bytes.NewReader(nil))
	require.Nil(t, res)
	require.Equal(t, DecodeError, KindOf(err))

	body, jerr := json.Marshal(ErrorResponse{Error: err.Error()})
	require.NoError(t, jerr)
	require.JSONEq(t, `{"error":"Not enough frames extracted."}`, string(body))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestVideoScorerErrorAborts(t *testing.T) {
	tmp := t.TempDir()
	p := New(Deps{
		Logger:      zerolog.Nop(),
		FrameScorer: &fakeFrameScorer{p: 0.8, failAfter: 3},
		OpenSource:  func(path string) video.Source { return &fileSource{path: path, total: 40} },
	}, Options{Frames: 16, TempDir: tmp})

	res, err := p.Video(context.Background(), strings.NewReader("x"))
	require.Nil(t, res)
	require.Equal(t, ScorerError, KindOf(err))

	entries, _ := os.ReadDir(tmp)
	require.Empty(t, entries)
}

func TestPanicIsRecovered(t *testing.T) {
	tmp := t.TempDir()
	p := New(Deps{
		Logger:      zerolog.Nop(),
		FrameScorer: &fakeFrameScorer{panics: true},
		OpenSource:  func(path string) video.Source { return &fileSource{path: path, total: 40} },
	}, Options{TempDir: tmp})

	_, err := p.Video(context.Background(), strings.NewReader("x"))
	require.Equal(t, InternalError, KindOf(err))
	require.Contains(t, err.Error(), "tensor shape mismatch")

	entries, _ := os.ReadDir(tmp)
	require.Empty(t, entries)
}

func TestErrorKinds(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))

	e := &Error{Kind: AttributionError, Err: errors.New("inner")}
	require.Equal(t, "inner", e.Error())
	require.Equal(t, "DecodeError", (&Error{Kind: DecodeError}).Error())
	require.Equal(t, AttributionError, KindOf(fmt.Errorf("wrapped: %w", e)))
}
