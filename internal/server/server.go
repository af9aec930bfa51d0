// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/athanasso/photos-widget/internal/acquire"
	"github.com/athanasso/photos-widget/internal/config"
	"github.com/athanasso/photos-widget/internal/ratelimit"
	"github.com/athanasso/photos-widget/internal/rotate"
	"github.com/athanasso/photos-widget/internal/widget"
)

// ErrMissingDep is returned when a required dependency is nil.
var ErrMissingDep = errors.New("missing required dependency")

// pickerOpenTimeout bounds how long POST /api/acquire waits for the
// picker URI before handing the caller a status-poll answer instead.
const pickerOpenTimeout = 30 * time.Second

// Deps holds all server dependencies.
type Deps struct {
	// Required: widget state operations.
	Manager *widget.Manager

	// Required: acquisition workflow.
	Workflow *acquire.Workflow

	// Required: local photo import path.
	Importer *acquire.LocalImporter

	// Required: rotation trigger, scheduler, and host event routing.
	Trigger    *rotate.Trigger
	Scheduler  *rotate.Scheduler
	Dispatcher *rotate.Dispatcher

	// Optional: rate limiter for trigger endpoints. Nil disables
	// limiting (tests, local dev).
	Limiter *ratelimit.Limiter
}

func validateDeps(deps *Deps) error {
	if deps == nil || deps.Manager == nil || deps.Workflow == nil || deps.Importer == nil ||
		deps.Trigger == nil || deps.Scheduler == nil || deps.Dispatcher == nil {
		return ErrMissingDep
	}
	return nil
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	deps       *Deps
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
