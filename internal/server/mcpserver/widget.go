package mcpserver

import (
	_ "embed"
	"net/url"

	"github.com/promptfill/promptfill/internal/config"
)

const (
	// InlineWidgetURI identifies the inline card resource.
	InlineWidgetURI = "ui://widget/promptfill-inline-v1.html"
	// WidgetMIMEType is the MIME type hosts expect for widget HTML.
	WidgetMIMEType = "text/html+skybridge"

	inlineWidgetDescription = "Extract prompt fields, fill values, and render the final prompt inline."
)

//go:embed widget/inline.html
var inlineWidgetHTML string

// InlineWidgetHTML returns the embedded inline card markup.
func InlineWidgetHTML() string {
	return inlineWidgetHTML
}

var widgetResourceDomains = []string{"https://persistent.oaistatic.com"}

// NormalizeWidgetDomain reduces value to its origin, falling back to the
// default domain when value is empty or not an absolute URL.
func NormalizeWidgetDomain(value string) string {
	u, err := url.Parse(value)
	if value == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return config.DefaultWidgetDomain
	}
	return u.Scheme + "://" + u.Host
}

// widgetMeta is the _meta block attached to widget resource contents.
func widgetMeta(domain string, prefersBorder bool) map[string]any {
	connect := []string{}
	resources := append([]string(nil), widgetResourceDomains...)
	return map[string]any{
		"ui": map[string]any{
			"prefersBorder": prefersBorder,
			"domain":        domain,
			"csp": map[string]any{
				"connectDomains":  connect,
				"resourceDomains": resources,
			},
		},
		"openai/widgetDescription":   inlineWidgetDescription,
		"openai/widgetPrefersBorder": prefersBorder,
		"openai/widgetDomain":        domain,
		"openai/widgetCSP": map[string]any{
			"connect_domains":  connect,
			"resource_domains": resources,
		},
	}
}
