package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/appid"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/server/handlers"
	"github.com/promptfill/promptfill/internal/server/mcpserver"
	servermw "github.com/promptfill/promptfill/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/", s.rootHandler)

	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.NewVersionHandler(s.serviceInfo()))
	s.router.Method(http.MethodGet, "/metrics", newMetricsProxy())

	if s.deps.Router != nil {
		s.registerToolRoutes()
	}

	s.registerAdminEndpoint()
}

// registerToolRoutes mounts the MCP endpoint and the REST tool endpoints
// behind the origin allow-list and the optional bearer token.
func (s *Server) registerToolRoutes() {
	mcp := mcpserver.New(s.deps.Router, mcpserver.Options{
		Version:      s.deps.Version,
		WidgetDomain: s.cfg.WidgetDomain,
		AuthRequired: s.cfg.AuthToken != "",
	})
	mcpHandler := mcpserver.Handler(mcp, s.cfg.MCPPath)
	if s.cfg.MaxBodyBytes > 0 {
		mcpHandler = http.MaxBytesHandler(mcpHandler, s.cfg.MaxBodyBytes)
	}
	toolsHandler := handlers.NewToolsHandler(s.deps.Router, s.cfg.MaxBodyBytes)

	s.router.Group(func(r chi.Router) {
		r.Use(servermw.CORS(s.cfg.AllowedOrigins))
		r.Use(servermw.BearerAuth(s.cfg.AuthToken))

		r.Handle(s.cfg.MCPPath, mcpHandler)
		r.Get("/v1/tools", toolsHandler.List)
		r.Post("/v1/tools/{name}", toolsHandler.Call)
		// Preflights are answered by the CORS middleware.
		r.Options("/v1/tools", noContent)
		r.Options("/v1/tools/{name}", noContent)
	})
}

func (s *Server) serviceInfo() handlers.ServiceInfo {
	info := handlers.ServiceInfo{MCPPath: s.cfg.MCPPath}
	if s.deps.Store != nil {
		info.StoreDriver = s.deps.Store.Driver()
	}
	if s.deps.Router != nil {
		info.Tools = s.deps.Router.Names()
	}
	return info
}

func noContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "PromptFill MCP server is running on %s\n", s.cfg.MCPPath)
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.EnvPrefix(context.Background())

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10, // requests per minute
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
