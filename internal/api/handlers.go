package api

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kikiluvv/slopdetect/internal/detect"
	"github.com/kikiluvv/slopdetect/internal/store"
	"github.com/rs/zerolog"
)

// Detector is the pipeline as seen by the HTTP layer.
type Detector interface {
	Predict(ctx context.Context, text string) (*detect.TextResult, error)
	Text(ctx context.Context, text string, explain bool) (*detect.TextResult, error)
	Image(ctx context.Context, r io.Reader) (*detect.ImageResult, error)
	Video(ctx context.Context, r io.Reader) (*detect.VideoResult, error)
	History(ctx context.Context, limit int) ([]store.Record, error)
	Ready() map[string]bool
}

type predictRequest struct {
	Text string `json:"text" validate:"required"`
}

type textDetectRequest struct {
	Text    string `json:"text" validate:"required"`
	Explain bool   `json:"explain"`
}

type historyEntry struct {
	ID         string              `json:"id"`
	Kind       string              `json:"kind"`
	Label      string              `json:"label"`
	Confidence float64             `json:"confidence"`
	Frames     []store.FrameRecord `json:"frames,omitempty"`
	CreatedAt  string              `json:"created_at"`
}

// Handlers serves the detection endpoints.
type Handlers struct {
	logger   zerolog.Logger
	detector Detector
	validate *validator.Validate
}

// NewHandlers wraps a detector.
func NewHandlers(logger zerolog.Logger, d Detector) *Handlers {
	return &Handlers{
		logger:   logger,
		detector: d,
		validate: validator.New(),
	}
}

func errorBody(msg string) detect.ErrorResponse {
	return detect.ErrorResponse{Error: msg}
}

// respond sends the result, or a 200 {"error"} body when the pipeline failed.
func respond[T any](c *fiber.Ctx, res *T, err error) error {
	if err != nil {
		zerolog.Ctx(c.UserContext()).Warn().
			Err(err).
			Str("kind", string(detect.KindOf(err))).
			Msg("detection failed")
		return c.JSON(errorBody(err.Error()))
	}
	return c.JSON(res)
}

func (h *Handlers) bindText(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}
	return nil
}

// Health reports liveness and which models are loaded.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"ready":  h.detector.Ready(),
	})
}

// Predict handles POST /predict.
func (h *Handlers) Predict(c *fiber.Ctx) error {
	var req predictRequest
	if err := h.bindText(c, &req); err != nil {
		return err
	}
	res, err := h.detector.Predict(c.UserContext(), req.Text)
	return respond(c, res, err)
}

// TextDetect handles POST /text-detect.
func (h *Handlers) TextDetect(c *fiber.Ctx) error {
	var req textDetectRequest
	if err := h.bindText(c, &req); err != nil {
		return err
	}
	res, err := h.detector.Text(c.UserContext(), req.Text, req.Explain)
	return respond(c, res, err)
}

// ImageDetect handles POST /image-detect.
func (h *Handlers) ImageDetect(c *fiber.Ctx) error {
	f, err := openUpload(c)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := h.detector.Image(c.UserContext(), f)
	return respond(c, res, err)
}

// VideoDetect handles POST /video-detect.
func (h *Handlers) VideoDetect(c *fiber.Ctx) error {
	f, err := openUpload(c)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := h.detector.Video(c.UserContext(), f)
	return respond(c, res, err)
}

// History handles GET /history.
func (h *Handlers) History(c *fiber.Ctx) error {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}

	recs, err := h.detector.History(c.UserContext(), limit)
	if err != nil {
		return err
	}

	out := make([]historyEntry, len(recs))
	for i, r := range recs {
		out[i] = historyEntry{
			ID:         r.ID.String(),
			Kind:       r.Kind,
			Label:      r.Label,
			Confidence: r.Confidence,
			Frames:     r.Frames,
			CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return c.JSON(fiber.Map{"detections": out})
}

func openUpload(c *fiber.Ctx) (io.ReadCloser, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file")
	}
	return f, nil
}
