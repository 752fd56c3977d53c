package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"

	"github.com/promptfill/promptfill/internal/config"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used by serve; its profile follows logging.profile.
	ServerLogger *logging.Logger
)

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}

// ServerLoggerConfig builds the serve logger. STRUCTURED (the default) writes
// JSON to stderr with correlation IDs; SIMPLE writes console lines.
func ServerLoggerConfig(serviceName string, cfg config.LoggingConfig, namespace string) *logging.LoggerConfig {
	staticFields := make(map[string]any)
	if namespace != "" {
		staticFields["namespace"] = namespace
	}

	lc := &logging.LoggerConfig{
		DefaultLevel: ParseLevel(cfg.Level),
		Service:      serviceName,
		Environment:  "production",
		StaticFields: staticFields,
		EnableCaller: true,
	}

	switch strings.ToUpper(strings.TrimSpace(cfg.Profile)) {
	case "SIMPLE":
		lc.Profile = logging.ProfileSimple
		lc.Sinks = []logging.SinkConfig{stderrSink("console")}
	default:
		lc.Profile = logging.ProfileStructured
		lc.Middleware = []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		}
		lc.Sinks = []logging.SinkConfig{stderrSink("json")}
		lc.EnableStacktrace = true
	}
	return lc
}

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:   "console",
		Format: format,
		Console: &logging.ConsoleSinkConfig{
			Stream:   "stderr",
			Colorize: false,
		},
	}
}

// InitServerLogger installs ServerLogger for the serve command.
func InitServerLogger(serviceName string, cfg config.LoggingConfig, namespace string) error {
	logger, err := logging.New(ServerLoggerConfig(serviceName, cfg, namespace))
	if err != nil {
		return fmt.Errorf("initialize server logger: %w", err)
	}
	ServerLogger = logger
	return nil
}

// ParseLevel maps a config log level onto a gofulmen severity; unknown
// values fall back to INFO.
func ParseLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr is used before any logger exists.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}
