package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/config"
	"github.com/promptfill/promptfill/internal/core/store"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/metrics"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/server/handlers"
	servermw "github.com/promptfill/promptfill/internal/server/middleware"
	"github.com/promptfill/promptfill/internal/tools"
)

// Deps are the collaborators the HTTP server exposes.
type Deps struct {
	Router  *tools.Router
	Store   store.TemplateStore
	Version string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
	health *handlers.HealthManager
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	if cfg.MCPPath == "" {
		cfg.MCPPath = "/mcp"
	}

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
		health: handlers.NewHealthManager(deps.Version),
	}
	if deps.Store != nil {
		s.health.RegisterChecker("store", handlers.CheckerFunc(deps.Store.Ping))
	}

	s.registerRoutes()

	return s
}

// Health exposes the health manager so callers can add checks and mark
// startup complete.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       orDefault(s.cfg.ReadTimeout, 30*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      orDefault(s.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       orDefault(s.cfg.IdleTimeout, 120*time.Second),
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr),
		zap.String("mcp_path", s.cfg.MCPPath))

	s.health.MarkStarted()
	metrics.SetServerStartTime(time.Now())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.cfg.Port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
