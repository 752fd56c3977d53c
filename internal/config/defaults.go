package config

// DefaultAllowedOrigins are the CORS origins accepted when none are configured.
var DefaultAllowedOrigins = []string{
	"https://chat.openai.com",
	"https://chatgpt.com",
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// DefaultWidgetDomain is the sandbox origin that hosts the inline widget.
const DefaultWidgetDomain = "https://web-sandbox.oaiusercontent.com"

// defaultValues is the first configuration layer.
func defaultValues() map[string]any {
	origins := make([]any, 0, len(DefaultAllowedOrigins))
	for _, origin := range DefaultAllowedOrigins {
		origins = append(origins, origin)
	}

	return map[string]any{
		"server": map[string]any{
			"host":             "localhost",
			"port":             8787,
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
			"mcp_path":         "/mcp",
			"auth_token":       "",
			"allowed_origins":  origins,
			"widget_domain":    DefaultWidgetDomain,
			"max_body_bytes":   1 << 20,
		},
		"store": map[string]any{
			"driver":         "libsql",
			"path":           "",
			"url":            "",
			"auth_token":     "",
			"principal":      "service_role",
			"max_open_conns": 0,
		},
		"extract": map[string]any{
			"strict":         false,
			"min_confidence": 0.0,
		},
		"eval": map[string]any{
			"model":        "gpt-4.1-mini",
			"base_url":     "https://api.openai.com/v1",
			"api_key":      "",
			"min_accuracy": 0.8,
			"required":     false,
			"concurrency":  4,
			"timeout":      "30s",
			"report_path":  "output/tool-routing-eval.json",
			"env_file":     ".env",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "STRUCTURED",
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    9090,
		},
		"health": map[string]any{
			"enabled": true,
		},
		"debug": map[string]any{
			"enabled":       false,
			"pprof_enabled": false,
		},
	}
}
