package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/config"
	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	errwrap "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/server"
	"github.com/promptfill/promptfill/internal/server/handlers"
	"github.com/promptfill/promptfill/internal/tools"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// serveOverrides turns explicitly set flags into a config layer.
func serveOverrides(cmd *cobra.Command, host string, port int, dbDriver string) map[string]any {
	serverLayer := map[string]any{}
	if cmd.Flags().Changed("host") {
		serverLayer["host"] = host
	}
	if cmd.Flags().Changed("port") {
		serverLayer["port"] = port
	}
	layer := map[string]any{"server": serverLayer}
	if cmd.Flags().Changed("db-driver") {
		layer["store"] = map[string]any{"driver": dbDriver}
	}
	return layer
}

func newServeCmd() *cobra.Command {
	var (
		serverHost string
		serverPort int
		dbDriver   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP and tool HTTP server",
		Long: `Start the HTTP server exposing the PromptFill tools over MCP (streamable HTTP)
and REST, with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (listener and store changes need a restart)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			overrides := serveOverrides(cmd, serverHost, serverPort, dbDriver)

			cfg, err := loadConfig(ctx, overrides)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, err.Error())
			}

			identity := GetAppIdentity()
			namespace := identity.TelemetryNamespace()

			if err := observability.InitServerLogger(identity.BinaryName, cfg.Logging, namespace); err != nil {
				return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, err.Error())
			}
			log := observability.ServerLogger

			if namespace == "" {
				namespace = identity.BinaryName
			}
			if err := observability.InitMetrics(namespace, cfg.Metrics); err != nil {
				log.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}

			log.Info("Initializing server",
				zap.String("service", identity.BinaryName),
				zap.String("namespace", namespace),
				zap.String("version", versionInfo.Version),
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port),
				zap.String("mcp_path", cfg.Server.MCPPath),
				zap.String("store_driver", cfg.Store.Driver),
				zap.Bool("auth_required", cfg.Server.AuthToken != ""))

			opened, err := store.New(ctx, cfg.Store)
			if err != nil {
				return storeFailure(ctx, err, "open store")
			}
			templates := store.Instrument(opened)

			router, err := tools.NewRouter(templates,
				tools.WithExtractOptions(template.ExtractOptions{
					Strict:        cfg.Extract.Strict,
					MinConfidence: cfg.Extract.MinConfidence,
				}),
				tools.WithLogger(log),
			)
			if err != nil {
				_ = templates.Close()
				return errwrap.WrapInternal(ctx, err, "build tool router")
			}

			handlers.SetAppIdentity(identity)
			srv := server.New(cfg.Server, server.Deps{
				Router:  router,
				Store:   templates,
				Version: versionInfo.Version,
			})
			hm := srv.Health()
			if cfg.Metrics.Enabled {
				hm.RegisterChecker("telemetry", telemetryHealthChecker{})
			}
			hm.RegisterChecker("app_identity", identityHealthChecker{
				binaryName: identity.BinaryName,
				envPrefix:  identity.EnvPrefix,
				configName: identity.ConfigName,
			})

			registerLifecycle(srv, templates, cfg)

			// Enable double-tap force quit (Ctrl+C within 2 seconds)
			if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
				Window:  2 * time.Second,
				Message: "Press Ctrl+C again within 2 seconds to force quit",
			}); err != nil {
				log.Warn("Failed to enable double-tap force quit", zap.Error(err))
			}

			errChan := make(chan error, 1)
			go func() {
				log.Info("Starting HTTP server...",
					zap.String("host", cfg.Server.Host),
					zap.Int("port", cfg.Server.Port))
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					errChan <- err
				}
			}()

			go func() {
				if err := signals.Listen(ctx); err != nil {
					log.Error("Signal handler error", zap.Error(err))
					errChan <- err
				}
			}()

			if err := <-errChan; err != nil {
				return errwrap.WrapInternal(ctx, err, "server error")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (default from server.host)")
	cmd.Flags().IntVarP(&serverPort, "port", "p", 8787, "server port (default from server.port)")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "", "store driver override (libsql, sqlite, postgres, mysql, memory)")
	return cmd
}

// registerLifecycle wires shutdown (LIFO: server, store, metrics, logger) and SIGHUP
// reload handlers.
func registerLifecycle(srv *server.Server, templates store.TemplateStore, cfg *config.Config) {
	log := observability.ServerLogger
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Flushing logger...")
		if err := log.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.ShutdownMetrics(); err != nil {
			log.Warn("Failed to stop metrics exporter", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Closing template store...")
		if err := templates.Close(); err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "store close failed")
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}

		log.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		log.Info("Received SIGHUP: attempting config reload")

		reloaded, err := loadConfig(ctx)
		if err != nil {
			log.Error("Failed to reload config", zap.Error(err))
			return err
		}

		if reloaded.Server.Host != cfg.Server.Host || reloaded.Server.Port != cfg.Server.Port ||
			reloaded.Store.Driver != cfg.Store.Driver {
			log.Warn("Listener or store settings changed; restart to apply",
				zap.String("store_driver", reloaded.Store.Driver),
				zap.Int("port", reloaded.Server.Port))
		}

		log.Info("Configuration reloaded successfully")
		return nil
	})
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
