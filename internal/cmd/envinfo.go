package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/config"
	"github.com/promptfill/promptfill/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== PromptFill Environment Information ===")
		log.Info("")

		identity := GetAppIdentity()
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Server:")
		log.Info(fmt.Sprintf("  Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port), zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))
		log.Info("  MCP Path:       "+cfg.Server.MCPPath, zap.String("mcp_path", cfg.Server.MCPPath))
		log.Info("  Auth Token:     " + setOrNot(cfg.Server.AuthToken))
		log.Info("  Origins:        " + strings.Join(cfg.Server.AllowedOrigins, ", "))
		log.Info("  Widget Domain:  " + cfg.Server.WidgetDomain)
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("")

		log.Info("Store:")
		log.Info("  Driver:         "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  URL:            (set)")
		} else {
			log.Info("  Path:           "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info("  Principal:      " + cfg.Store.Principal)
		log.Info(fmt.Sprintf("  Shared:         %t", cfg.Store.Shared()))
		log.Info("")

		log.Info("Extraction:")
		log.Info(fmt.Sprintf("  Strict:         %t", cfg.Extract.Strict))
		log.Info(fmt.Sprintf("  Min Confidence: %.2f", cfg.Extract.MinConfidence))
		log.Info("")

		log.Info("Routing Eval:")
		log.Info("  Model:          " + cfg.Eval.Model)
		log.Info("  Base URL:       " + cfg.Eval.BaseURL)
		log.Info("  API Key:        " + setOrNot(cfg.Eval.APIKey))
		log.Info(fmt.Sprintf("  Min Accuracy:   %.2f", cfg.Eval.MinAccuracy))
		log.Info("")

		log.Info("Logging:")
		log.Info("  Level:          "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Profile:        "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func setOrNot(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
