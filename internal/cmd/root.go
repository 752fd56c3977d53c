package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/appid"
	"github.com/promptfill/promptfill/internal/config"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string

	// App identity loaded from .fulmen/app.yaml
	appIdentity *appidentity.Identity

	// fileSettings holds the values read from --config or ./config, layered
	// over the XDG config and environment by loadConfig.
	fileSettings map[string]any

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		// NOTE: applyIdentity overwrites these from app identity.
		Use:   filepath.Base(os.Args[0]),
		Short: "Turn rough prompts into reusable templates",
		Long: `Turn rough prompts into reusable templates and render them for agents.

Use the subcommands to extract, render and manage templates, or serve them over MCP.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, markdown")

	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	applyIdentity(root, appIdentity)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Load app identity early for help text (before cobra processes --help)
	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		applyIdentity(rootCmd, identity)
	}

	cobra.OnInitialize(initConfig)
}

func applyIdentity(root *cobra.Command, identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	if identity.BinaryName != "" {
		root.Use = identity.BinaryName
	}
	if identity.Description != "" {
		root.Short = identity.Description
		root.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.", identity.BinaryName, identity.Description)
	}
	if f := root.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// initConfig loads identity, the CLI logger and any explicit config file.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	appIdentity = identity

	// Initialize CLI logger early so we can use it in config loading
	observability.InitCLILogger(appIdentity.BinaryName, verbose)

	fileSettings = nil
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			observability.CLILogger.Debug("No local config file found, using XDG config and environment variables")
			return
		}
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file",
			apperrors.NewConfigInvalidError(err.Error()))
	}

	observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	fileSettings = v.AllSettings()
}

// loadConfig resolves configuration with the config file layered under
// command-specific overrides.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	layers := make([]map[string]any, 0, len(overrides)+1)
	if fileSettings != nil {
		layers = append(layers, fileSettings)
	}
	layers = append(layers, overrides...)

	cfg, err := config.Load(ctx, layers...)
	if err != nil {
		return nil, apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "load config")
	}
	return cfg, nil
}
