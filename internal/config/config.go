package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Config represents the complete application configuration, resolved from
// three layers:
// Layer 1: built-in defaults (defaults.go)
// Layer 2: user overrides (~/.config/promptfill/config.yaml)
// Layer 3: environment variables and runtime overrides
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Extract ExtractConfig `mapstructure:"extract"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MCPPath is where the streamable HTTP MCP endpoint is mounted.
	MCPPath string `mapstructure:"mcp_path"`
	// AuthToken, when set, is required as a bearer token on the MCP and
	// tool endpoints.
	AuthToken string `mapstructure:"auth_token"`
	// AllowedOrigins is the CORS allow-list. A trailing "*" matches any
	// suffix, e.g. "http://localhost:*".
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// WidgetDomain is the origin the inline widget is served from.
	WidgetDomain string `mapstructure:"widget_domain"`
	// MaxBodyBytes bounds tool request bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// StoreConfig selects and configures the template store engine.
type StoreConfig struct {
	// Driver is one of libsql, sqlite, postgres, mysql, memory.
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
	// Principal is the role applied to each transaction on postgres.
	Principal    string `mapstructure:"principal"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ExtractConfig tunes the extractor used by the CLI and the
// extract_prompt_fields tool.
type ExtractConfig struct {
	Strict        bool    `mapstructure:"strict"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// EvalConfig configures the tool-routing evaluation.
type EvalConfig struct {
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	MinAccuracy float64       `mapstructure:"min_accuracy"`
	Required    bool          `mapstructure:"required"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ReportPath  string        `mapstructure:"report_path"`
	EnvFile     string        `mapstructure:"env_file"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

var storeDrivers = []string{"libsql", "sqlite", "sqlite3", "postgres", "postgresql", "supabase", "mysql", "memory"}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.MCPPath, "/") {
		errs = append(errs, fmt.Errorf("server.mcp_path must start with '/', got %q", c.Server.MCPPath))
	}
	if c.Server.WidgetDomain != "" {
		if u, err := url.Parse(c.Server.WidgetDomain); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.widget_domain %q is not an absolute URL", c.Server.WidgetDomain))
		}
	}

	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if driver != "" && !slices.Contains(storeDrivers, driver) {
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}

	if c.Extract.MinConfidence < 0 || c.Extract.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("extract.min_confidence must be within [0,1]"))
	}
	if c.Eval.MinAccuracy < 0 || c.Eval.MinAccuracy > 1 {
		errs = append(errs, fmt.Errorf("eval.min_accuracy must be within [0,1]"))
	}
	if c.Eval.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("eval.concurrency must not be negative"))
	}

	return errors.Join(errs...)
}

// ValidateServe applies the security guardrails for exposing a shared
// template store over HTTP.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Store.Shared() {
		return nil
	}
	if strings.TrimSpace(c.Server.AuthToken) == "" {
		return fmt.Errorf("server.auth_token is required when store.driver=%s points at a shared store", c.Store.Driver)
	}
	if slices.Contains(c.Server.AllowedOrigins, "*") {
		return fmt.Errorf("server.allowed_origins cannot include '*' when the store is shared")
	}
	return nil
}

// Shared reports whether the store is reachable by other processes.
func (s StoreConfig) Shared() bool {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "postgres", "postgresql", "supabase", "mysql":
		return true
	case "", "libsql":
		return strings.TrimSpace(s.URL) != ""
	}
	return false
}
