package output

import (
	"encoding/json"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	"github.com/promptfill/promptfill/internal/routing"
	"github.com/promptfill/promptfill/internal/tools"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) encode(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// Templates renders the list as a JSON array; an empty list is [].
func (f *JSONFormatter) Templates(items []store.Template) (string, error) {
	if items == nil {
		items = []store.Template{}
	}
	return f.encode(items)
}

func (f *JSONFormatter) Template(item *store.Template) (string, error) {
	return f.encode(item)
}

func (f *JSONFormatter) Versions(name string, items []store.Version) (string, error) {
	if items == nil {
		items = []store.Version{}
	}
	return f.encode(map[string]any{"name": name, "versions": items})
}

func (f *JSONFormatter) Extraction(result template.Extraction) (string, error) {
	return f.encode(result)
}

// FillResult renders the prompt and missing fields; none missing is [].
func (f *JSONFormatter) FillResult(result template.FillResult) (string, error) {
	if result.MissingRequired == nil {
		result.MissingRequired = []string{}
	}
	return f.encode(result)
}

func (f *JSONFormatter) Tools(defs []tools.Definition) (string, error) {
	return f.encode(defs)
}

func (f *JSONFormatter) RoutingReport(report *routing.Report) (string, error) {
	return f.encode(report)
}
