// Package api exposes the detection pipeline over HTTP.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Options configure the HTTP server.
type Options struct {
	BodyLimitMB  int
	AllowOrigins string
}

// Server is the fiber app with routes installed.
type Server struct {
	logger zerolog.Logger
	app    *fiber.App
}

// NewServer builds the app. Routes exist both at the root and under /api/v1.
func NewServer(logger zerolog.Logger, d Detector, opts Options) *Server {
	logger = logger.With().Str("component", "api").Logger()

	bodyLimit := opts.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 512
	}

	app := fiber.New(fiber.Config{
		AppName:               "slopdetect",
		ErrorHandler:          errorHandler(logger),
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(requestID(logger))
	app.Use(accessLog(logger))
	app.Use(corsMiddleware(opts.AllowOrigins))

	h := NewHandlers(logger, d)
	app.Get("/health", h.Health)
	mount(app, h)
	mount(app.Group("/api/v1"), h)

	return &Server{logger: logger, app: app}
}

func mount(r fiber.Router, h *Handlers) {
	r.Post("/predict", h.Predict)
	r.Post("/text-detect", h.TextDetect)
	r.Post("/image-detect", h.ImageDetect)
	r.Post("/video-detect", h.VideoDetect)
	r.Get("/history", h.History)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("server starting")
	return s.app.Listen(addr)
}

// Shutdown waits up to grace for in-flight requests.
func (s *Server) Shutdown(grace time.Duration) error {
	s.logger.Info().Dur("grace", grace).Msg("shutting down")
	return s.app.ShutdownWithTimeout(grace)
}
