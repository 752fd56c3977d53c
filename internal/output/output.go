package output

import (
	"fmt"
	"strings"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	"github.com/promptfill/promptfill/internal/routing"
	"github.com/promptfill/promptfill/internal/tools"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders command results.
type Formatter interface {
	Templates(items []store.Template) (string, error)
	Template(item *store.Template) (string, error)
	Versions(name string, items []store.Version) (string, error)
	Extraction(result template.Extraction) (string, error)
	FillResult(result template.FillResult) (string, error)
	Tools(defs []tools.Definition) (string, error)
	RoutingReport(report *routing.Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &TableFormatter{Markdown: true}
	default:
		return &TableFormatter{}
	}
}
