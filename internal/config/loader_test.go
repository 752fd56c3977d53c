package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateXDG keeps a developer's real config file out of the test run.
func isolateXDG(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolateXDG(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8787, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "/mcp", cfg.Server.MCPPath)
		assert.Equal(t, DefaultAllowedOrigins, cfg.Server.AllowedOrigins)
		assert.Equal(t, DefaultWidgetDomain, cfg.Server.WidgetDomain)
		assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
		assert.Empty(t, cfg.Server.AuthToken)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("promptfill"), "promptfill.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)
		assert.Equal(t, "service_role", cfg.Store.Principal)

		assert.False(t, cfg.Extract.Strict)
		assert.Equal(t, "gpt-4.1-mini", cfg.Eval.Model)
		assert.Equal(t, 0.8, cfg.Eval.MinAccuracy)
		assert.Equal(t, 4, cfg.Eval.Concurrency)
		assert.Equal(t, 30*time.Second, cfg.Eval.Timeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolateXDG(t)

		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, "/mcp", cfg.Server.MCPPath)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolateXDG(t)
		t.Setenv("PROMPTFILL_PORT", "3000")
		t.Setenv("PROMPTFILL_LOG_LEVEL", "warn")
		t.Setenv("PROMPTFILL_METRICS_ENABLED", "false")
		t.Setenv("PROMPTFILL_ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("PROMPTFILL_DB_DRIVER", "memory")
		t.Setenv("PROMPTFILL_EVAL_MIN_ACCURACY", "0.9")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, "memory", cfg.Store.Driver)
		assert.Equal(t, 0.9, cfg.Eval.MinAccuracy)
	})

	t.Run("UserConfigFile", func(t *testing.T) {
		isolateXDG(t)

		path := DefaultConfigPath()
		require.NotEmpty(t, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7001\nextract:\n  strict: true\n"), 0o600))

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7001, cfg.Server.Port)
		assert.True(t, cfg.Extract.Strict)
		assert.Equal(t, "localhost", cfg.Server.Host)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolateXDG(t)
		t.Setenv("PROMPTFILL_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("OpenAIKeyFallback", func(t *testing.T) {
		isolateXDG(t)
		t.Setenv("OPENAI_API_KEY", "sk-fallback")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "sk-fallback", cfg.Eval.APIKey)

		t.Setenv("PROMPTFILL_EVAL_API_KEY", "sk-prefixed")
		cfg, err = Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "sk-prefixed", cfg.Eval.APIKey)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		isolateXDG(t)

		_, err := Load(ctx, map[string]any{
			"server": map[string]any{"mcp_path": "mcp"},
		})
		require.Error(t, err)

		_, err = Load(ctx, map[string]any{
			"store": map[string]any{"driver": "oracle"},
		})
		require.Error(t, err)
	})
}

func TestGetConfig(t *testing.T) {
	isolateXDG(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvSpecs(t *testing.T) {
	isolateXDG(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	envVarNames := make(map[string]bool)
	for _, spec := range getEnvSpecs() {
		envVarNames[spec.Name] = true
	}

	for _, name := range []string{
		"PROMPTFILL_LOG_LEVEL",
		"PROMPTFILL_PORT",
		"PROMPTFILL_HOST",
		"PROMPTFILL_MCP_PATH",
		"PROMPTFILL_AUTH_TOKEN",
		"PROMPTFILL_ALLOWED_ORIGINS",
		"PROMPTFILL_DB_DRIVER",
		"PROMPTFILL_DB_URL",
		"PROMPTFILL_EVAL_MODEL",
	} {
		assert.True(t, envVarNames[name], "%s must be mapped", name)
	}
}

func TestDurationParsing(t *testing.T) {
	isolateXDG(t)
	t.Setenv("PROMPTFILL_READ_TIMEOUT", "45s")
	t.Setenv("PROMPTFILL_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestValidateServe(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8787, MCPPath: "/mcp", AllowedOrigins: DefaultAllowedOrigins},
			Store:  StoreConfig{Driver: "libsql", Path: "/tmp/promptfill.db"},
		}
	}

	t.Run("LocalStoreNeedsNoToken", func(t *testing.T) {
		require.NoError(t, base().ValidateServe())
	})

	t.Run("SharedStoreRequiresToken", func(t *testing.T) {
		cfg := base()
		cfg.Store = StoreConfig{Driver: "postgres", URL: "postgres://db/promptfill"}
		require.ErrorContains(t, cfg.ValidateServe(), "auth_token")

		cfg.Server.AuthToken = "secret"
		require.NoError(t, cfg.ValidateServe())
	})

	t.Run("SharedStoreRejectsWildcardOrigin", func(t *testing.T) {
		cfg := base()
		cfg.Store = StoreConfig{Driver: "libsql", URL: "libsql://db.turso.io"}
		cfg.Server.AuthToken = "secret"
		cfg.Server.AllowedOrigins = []string{"*"}
		require.ErrorContains(t, cfg.ValidateServe(), "allowed_origins")
	})

	t.Run("SharedDetection", func(t *testing.T) {
		assert.False(t, StoreConfig{Driver: "memory"}.Shared())
		assert.False(t, StoreConfig{Driver: "sqlite", Path: "x.db"}.Shared())
		assert.True(t, StoreConfig{Driver: "mysql"}.Shared())
		assert.True(t, StoreConfig{Driver: "", URL: "libsql://remote"}.Shared())
	})
}
