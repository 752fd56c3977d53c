package observability

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" info ":  "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"loud":    "INFO",
		"":        "INFO",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestServerLoggerConfig(t *testing.T) {
	t.Run("Structured", func(t *testing.T) {
		cfg := ServerLoggerConfig("promptfill", config.LoggingConfig{Level: "debug", Profile: "STRUCTURED"}, "pf")
		assert.Equal(t, logging.ProfileStructured, cfg.Profile)
		assert.Equal(t, "DEBUG", cfg.DefaultLevel)
		assert.Equal(t, "pf", cfg.StaticFields["namespace"])
		require.Len(t, cfg.Middleware, 1)
		assert.Equal(t, "correlation", cfg.Middleware[0].Name)
		require.Len(t, cfg.Sinks, 1)
		assert.Equal(t, "json", cfg.Sinks[0].Format)
	})

	t.Run("Simple", func(t *testing.T) {
		cfg := ServerLoggerConfig("promptfill", config.LoggingConfig{Profile: "simple"}, "")
		assert.Equal(t, logging.ProfileSimple, cfg.Profile)
		assert.Empty(t, cfg.Middleware)
		assert.Empty(t, cfg.StaticFields)
		assert.Equal(t, "console", cfg.Sinks[0].Format)
	})

	t.Run("UnknownProfileIsStructured", func(t *testing.T) {
		cfg := ServerLoggerConfig("promptfill", config.LoggingConfig{Profile: "ENTERPRISE"}, "")
		assert.Equal(t, logging.ProfileStructured, cfg.Profile)
	})
}

func TestInitLoggers(t *testing.T) {
	InitCLILogger("promptfill-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("component", "test"))

	require.NoError(t, InitServerLogger("promptfill-test", config.LoggingConfig{Level: "info", Profile: "STRUCTURED"}, "promptfill"))
	require.NotNil(t, ServerLogger)
	ServerLogger.Info("server logger ready", zap.String("tool", "render_prompt"))
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}

func TestInitMetrics(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		require.NoError(t, InitMetrics("promptfill_test", config.MetricsConfig{Enabled: false, Port: 9999}))
		assert.Nil(t, PrometheusExporter)
		assert.Nil(t, TelemetrySystem)
		assert.Zero(t, GetMetricsPort())
		assert.NoError(t, ShutdownMetrics())
	})

	t.Run("RandomPort", func(t *testing.T) {
		err := InitMetrics("promptfill_test", config.MetricsConfig{Enabled: true, Port: 0})
		if isPermissionError(err) {
			t.Skipf("loopback listen not permitted: %v", err)
		}
		require.NoError(t, err)
		t.Cleanup(func() { _ = ShutdownMetrics() })

		assert.NotNil(t, PrometheusExporter)
		assert.NotNil(t, TelemetrySystem)

		require.NoError(t, ShutdownMetrics())
		assert.Nil(t, PrometheusExporter)
	})
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}
