// Package core provides the API chassis for Postroom. It owns the chi
// router and enforces cross-cutting concerns -- panic recovery, request IDs,
// structured logging, CORS, authentication -- before requests reach the
// domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"postroom/internal/config"
	"postroom/internal/types"
)

// Authenticator resolves a presented bearer token to an Actor. The production
// implementation lives in internal/auth; the interface is defined here so the
// middleware can be tested with a fake.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// RouteRegistrar mounts one handler group onto the v1 router. Handler
// packages expose a RegisterRoutes method matching this signature; main.go
// collects them. The indirection avoids import cycles between core and the
// handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the router and the cross-cutting dependencies every
// request passes through, allowing injection during testing.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator

	// V1RouteRegistrars is populated by the application entry point before
	// MountRoutes is called.
	V1RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer initializes the chassis and prepares the router for route
// mounting. It fails fast on missing critical dependencies. The caller is
// responsible for populating V1RouteRegistrars and calling MountRoutes.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown logs the shutdown; resource teardown (pool close, etc.) is owned
// by main, which created those resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
