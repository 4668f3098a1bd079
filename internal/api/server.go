// Package api serves the analysis engine over HTTP.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/topicast/topicast/internal/metrics"
	"github.com/topicast/topicast/pkg/topicast"
	"github.com/topicast/topicast/pkg/topicast/internalerr"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP server.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Version      string
	Engine       *topicast.Topicast
	Logger       *zap.Logger
}

// Server wraps the fiber app and its lifecycle.
type Server struct {
	app  *fiber.App
	addr string
	log  *zap.Logger
}

// New assembles the app, middleware and routes.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: engine is required", internalerr.ErrInvalidConfig)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(opts.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(opts.WriteTimeout) * time.Second,
		BodyLimit:    opts.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(metrics.Middleware())

	h := &handlers{engine: opts.Engine, version: opts.Version, log: log}

	app.Get("/health", h.Health)
	app.Get("/health/db", h.HealthDB)
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/analyze", h.Analyze)
	api.Post("/analyze", h.AnalyzePost)
	api.Post("/process", h.Process)
	api.Get("/exams", h.ListExams)
	api.Get("/exams/search/:name", h.SearchExams)
	api.Get("/exams/:id/subjects", h.ListSubjects)
	api.Get("/subjects/:id/chapters", h.ListChapters)
	api.Get("/stats", h.Stats)
	api.Get("/stats/:exam", h.ExamStats)

	return &Server{
		app:  app,
		addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		log:  log,
	}, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run serves until ctx is canceled, then drains in-flight requests
// with a timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.addr)
	}()

	s.log.Info("server listening", zap.String("address", s.addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server shutting down")
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}
