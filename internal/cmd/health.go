package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check: version info, configuration, and a store round-trip.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration loaded", zap.String("db_driver", cfg.Store.Driver))

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		templates, err := openStore(ctx, cfg)
		if err != nil {
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Store unavailable", err)
			return
		}
		defer func() { _ = templates.Close() }()
		if err := templates.Ping(ctx); err != nil {
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Store ping failed", err)
			return
		}
		log.Info("✅ Store reachable", zap.String("driver", templates.Driver()))

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
