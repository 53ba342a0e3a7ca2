// Package core provides the HTTP chassis for the catalog API. It creates a chi
// router and enforces cross-cutting concerns (panic recovery, request IDs,
// logging, metrics, error envelopes) before requests reach handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pricebook/internal/config"
)

// Server holds the router and the dependencies shared by all routes.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount handler routes under /v1. They are populated by
	// the entry point so that core does not import handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Closers are closed in order on Shutdown.
	Closers []io.Closer

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted separately with MountRoutes
// so that tests can customize registration first.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c.Close(); err != nil {
			s.Logger.ErrorContext(ctx, "error closing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing server resources: %w", err)
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
