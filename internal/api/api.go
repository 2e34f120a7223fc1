// Package api exposes the engine over HTTP: graph submission, run queries,
// cancellation, health and metrics.
package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/chainflow/internal/config"
	"github.com/vk/chainflow/internal/engine"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/graph"
	"github.com/vk/chainflow/internal/metrics"
	"github.com/vk/chainflow/internal/store"
)

// Server wires the engine into a fiber application.
type Server struct {
	engine   *engine.Engine
	defaults config.Defaults
	env      string
	metrics  *metrics.Metrics
	validate *validator.Validate
	logger   *slog.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(eng *engine.Engine, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		engine:   eng,
		defaults: cfg.Defaults,
		env:      cfg.Environment,
		metrics:  m,
		validate: validator.New(),
		logger:   logger,
	}
}

// submitRequest is the graph submission document.
type submitRequest struct {
	Graph   graph.Graph `json:"graph"`
	Options optionsDoc  `json:"options"`
}

type optionsDoc struct {
	MaxConcurrency int      `json:"maxConcurrency" validate:"gte=0,lte=64"`
	NodeTimeoutMs  int      `json:"nodeTimeoutMs" validate:"gte=0"`
	RetryPolicy    *retryDoc `json:"retryPolicy"`
	Environment    string   `json:"environment" validate:"omitempty,oneof=test live"`
}

type retryDoc struct {
	MaxAttempts int `json:"maxAttempts" validate:"gte=1,lte=10"`
	BackoffMs   int `json:"backoffMs" validate:"gte=0"`
}

// options merges the request's recognized options over the engine defaults.
func (s *Server) options(doc optionsDoc) engine.Options {
	opts := engine.Options{
		MaxConcurrency: s.defaults.MaxConcurrency,
		NodeTimeout:    s.defaults.NodeTimeout,
		Retry: engine.RetryPolicy{
			MaxAttempts: s.defaults.MaxAttempts,
			Backoff:     s.defaults.Backoff,
		},
		Environment: s.env,
		CancelGrace: s.defaults.CancelGrace,
	}
	if doc.MaxConcurrency > 0 {
		opts.MaxConcurrency = doc.MaxConcurrency
	}
	if doc.NodeTimeoutMs > 0 {
		opts.NodeTimeout = time.Duration(doc.NodeTimeoutMs) * time.Millisecond
	}
	if doc.RetryPolicy != nil {
		opts.Retry.MaxAttempts = doc.RetryPolicy.MaxAttempts
		if doc.RetryPolicy.BackoffMs > 0 {
			opts.Retry.Backoff = time.Duration(doc.RetryPolicy.BackoffMs) * time.Millisecond
		}
	}
	if doc.Environment != "" {
		opts.Environment = doc.Environment
	}
	return opts
}

// App builds the fiber application with all routes mounted.
func (s *Server) App() *fiber.App {
	app := fiber.New()

	app.Post("/runs", s.handleSubmit)
	app.Get("/runs/:id", s.handleQuery)
	app.Delete("/runs/:id", s.handleCancel)

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/operations", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"operations": s.engine.OperationTypes()})
	})
	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	return app
}

func (s *Server) handleSubmit(c fiber.Ctx) error {
	var req submitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.validate.Struct(req.Options); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	runID, err := s.engine.Submit(c.Context(), &req.Graph, s.options(req.Options))
	if err != nil {
		var verr *graph.ValidationError
		var uerr *executor.ErrUnknownOperationType
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "graph validation failed",
				"faults": verr.Faults,
			})
		case errors.As(err, &uerr):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": uerr.Error()})
		default:
			s.logger.Error("Run submission failed.", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"runId": runID})
}

func (s *Server) handleQuery(c fiber.Ctx) error {
	snap, err := s.engine.Snapshot(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(snap)
}

func (s *Server) handleCancel(c fiber.Ctx) error {
	if err := s.engine.Cancel(c.Params("id")); err != nil {
		if errors.Is(err, engine.ErrRunNotActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "cancelling"})
}
