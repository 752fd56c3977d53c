// Package config loads PromptFill settings. Layers apply in order: built-in
// defaults, the first XDG config file found, {PREFIX}* environment variables,
// then runtime overrides such as an explicit --config file and command flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/promptfill/promptfill/internal/appid"
)

var (
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

type EnvVarSpec = gfconfig.EnvVarSpec

const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load merges every layer, validates the result and publishes it through
// GetConfig. It is called again on SIGHUP.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load app identity: %w", err)
		}
		appIdentity = identity
	}

	merged := defaultValues()

	for _, path := range getUserConfigPaths() {
		layer, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if layer != nil {
			deepMerge(merged, layer)
			break
		}
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}
	applyProviderKeyFallback(envOverrides)
	deepMerge(merged, envOverrides)

	for _, override := range runtimeOverrides {
		deepMerge(merged, override)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.Server.AllowedOrigins = trimList(cfg.Server.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setConfig(cfg)

	return cfg, nil
}

func decode(merged map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the last configuration published by Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// readConfigFile returns nil when path does not exist.
func readConfigFile(path string) (map[string]any, error) {
	// #nosec G304 -- path comes from XDG discovery, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	layer := map[string]any{}
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return layer, nil
}

// deepMerge copies src into dst, descending into nested maps.
func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

// applyProviderKeyFallback lets the routing eval pick up OPENAI_API_KEY
// when no prefixed key is set.
func applyProviderKeyFallback(envOverrides map[string]any) {
	if eval, ok := envOverrides["eval"].(map[string]any); ok {
		if key, _ := eval["api_key"].(string); strings.TrimSpace(key) != "" {
			return
		}
	}
	key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if key == "" {
		return
	}
	eval, ok := envOverrides["eval"].(map[string]any)
	if !ok {
		eval = map[string]any{}
		envOverrides["eval"] = eval
	}
	eval["api_key"] = key
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envPrefix() string {
	if appIdentity == nil {
		return ""
	}
	prefix := appIdentity.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

func key(dotted string) []string {
	return strings.Split(dotted, ".")
}

// envBindings maps {PREFIX}{Name} variables onto config keys. Durations,
// floats and comma separated lists arrive as strings and are converted by the
// decode hooks.
var envBindings = []EnvVarSpec{
	{Name: "HOST", Path: key("server.host"), Type: EnvString},
	{Name: "PORT", Path: key("server.port"), Type: EnvInt},
	{Name: "READ_TIMEOUT", Path: key("server.read_timeout"), Type: EnvString},
	{Name: "WRITE_TIMEOUT", Path: key("server.write_timeout"), Type: EnvString},
	{Name: "IDLE_TIMEOUT", Path: key("server.idle_timeout"), Type: EnvString},
	{Name: "SHUTDOWN_TIMEOUT", Path: key("server.shutdown_timeout"), Type: EnvString},
	{Name: "MCP_PATH", Path: key("server.mcp_path"), Type: EnvString},
	{Name: "AUTH_TOKEN", Path: key("server.auth_token"), Type: EnvString},
	{Name: "ALLOWED_ORIGINS", Path: key("server.allowed_origins"), Type: EnvString},
	{Name: "WIDGET_DOMAIN", Path: key("server.widget_domain"), Type: EnvString},
	{Name: "MAX_BODY_BYTES", Path: key("server.max_body_bytes"), Type: EnvInt},

	{Name: "DB_DRIVER", Path: key("store.driver"), Type: EnvString},
	{Name: "DB_PATH", Path: key("store.path"), Type: EnvString},
	{Name: "DB_URL", Path: key("store.url"), Type: EnvString},
	{Name: "DB_AUTH_TOKEN", Path: key("store.auth_token"), Type: EnvString},
	{Name: "DB_PRINCIPAL", Path: key("store.principal"), Type: EnvString},
	{Name: "DB_MAX_OPEN_CONNS", Path: key("store.max_open_conns"), Type: EnvInt},

	{Name: "EXTRACT_STRICT", Path: key("extract.strict"), Type: EnvBool},
	{Name: "EXTRACT_MIN_CONFIDENCE", Path: key("extract.min_confidence"), Type: EnvString},

	{Name: "EVAL_MODEL", Path: key("eval.model"), Type: EnvString},
	{Name: "EVAL_BASE_URL", Path: key("eval.base_url"), Type: EnvString},
	{Name: "EVAL_API_KEY", Path: key("eval.api_key"), Type: EnvString},
	{Name: "EVAL_MIN_ACCURACY", Path: key("eval.min_accuracy"), Type: EnvString},
	{Name: "EVAL_REQUIRED", Path: key("eval.required"), Type: EnvBool},
	{Name: "EVAL_CONCURRENCY", Path: key("eval.concurrency"), Type: EnvInt},
	{Name: "EVAL_TIMEOUT", Path: key("eval.timeout"), Type: EnvString},
	{Name: "EVAL_REPORT_PATH", Path: key("eval.report_path"), Type: EnvString},

	{Name: "LOG_LEVEL", Path: key("logging.level"), Type: EnvString},
	{Name: "LOG_PROFILE", Path: key("logging.profile"), Type: EnvString},
	{Name: "METRICS_ENABLED", Path: key("metrics.enabled"), Type: EnvBool},
	{Name: "METRICS_PORT", Path: key("metrics.port"), Type: EnvInt},
	{Name: "HEALTH_ENABLED", Path: key("health.enabled"), Type: EnvBool},
	{Name: "DEBUG_ENABLED", Path: key("debug.enabled"), Type: EnvBool},
	{Name: "DEBUG_PPROF_ENABLED", Path: key("debug.pprof_enabled"), Type: EnvBool},
}

// getEnvSpecs returns envBindings under the identity's prefix.
func getEnvSpecs() []EnvVarSpec {
	if appIdentity == nil {
		return nil
	}
	prefix := envPrefix()
	specs := make([]EnvVarSpec, len(envBindings))
	for i, binding := range envBindings {
		binding.Name = prefix + binding.Name
		specs[i] = binding
	}
	return specs
}

// appNames returns the identity's config and binary names, defaulting both
// to "promptfill".
func appNames() (configName string, binaryName string) {
	configName, binaryName = "promptfill", "promptfill"
	if appIdentity == nil {
		return configName, binaryName
	}
	if name := strings.TrimSpace(appIdentity.ConfigName); name != "" {
		configName = name
	}
	if name := strings.TrimSpace(appIdentity.BinaryName); name != "" {
		binaryName = name
	}
	return configName, binaryName
}

// getUserConfigPaths lists the XDG config files to try, preferring the config
// name over a differing binary name.
func getUserConfigPaths() []string {
	if appIdentity == nil {
		return nil
	}
	configName, binaryName := appNames()
	var legacy []string
	if binaryName != configName {
		legacy = append(legacy, binaryName)
	}
	return gfconfig.GetAppConfigPaths(configName, legacy...)
}

// DefaultConfigPath returns the XDG config file path, or "" when no config
// directory can be resolved.
func DefaultConfigPath() string {
	configName, _ := appNames()
	dir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultDataDir returns the XDG data directory.
func DefaultDataDir() string {
	configName, _ := appNames()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath is where the embedded store lives when neither a path nor
// a URL is configured.
func DefaultStorePath() string {
	_, binaryName := appNames()
	dir := DefaultDataDir()
	if strings.TrimSpace(dir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dir, binaryName+".db")
}
