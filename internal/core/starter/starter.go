// Package starter holds the built-in catalog of starter templates that
// suggest_templates offers before a user has saved anything.
package starter

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/promptfill/promptfill/internal/core/template"
)

const (
	DefaultLimit = 6
	MaxLimit     = 12
)

//go:embed catalog.yaml
var catalogYAML []byte

// Template is one starter entry.
type Template struct {
	ID        string              `json:"id" yaml:"id"`
	UseCase   string              `json:"use_case" yaml:"use_case"`
	Name      string              `json:"name" yaml:"name"`
	Body      string              `json:"template" yaml:"template"`
	Variables []template.Variable `json:"variables" yaml:"variables"`
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

var loadCatalog = sync.OnceValues(func() ([]Template, error) {
	return parseCatalog(catalogYAML)
})

func parseCatalog(data []byte) ([]Template, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse starter catalog: %w", err)
	}
	for i, tpl := range file.Templates {
		if err := template.Validate(tpl.Body); err != nil {
			return nil, fmt.Errorf("starter %s: %w", tpl.ID, err)
		}
		vars, _, err := template.Reconcile(tpl.Body, tpl.Variables)
		if err != nil {
			return nil, fmt.Errorf("starter %s: %w", tpl.ID, err)
		}
		file.Templates[i].Variables = vars
	}
	return file.Templates, nil
}

// All returns a copy of the catalog.
func All() ([]Template, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(catalog))
	for _, tpl := range catalog {
		out = append(out, tpl.clone())
	}
	return out, nil
}

// Suggest filters the catalog by exact use case and by a case-insensitive
// substring over use case, name and body. Limit falls back to DefaultLimit
// and is capped at MaxLimit.
func Suggest(useCase, query string, limit int) ([]Template, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	useCase = strings.ToLower(strings.TrimSpace(useCase))
	query = strings.ToLower(strings.TrimSpace(query))
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	out := []Template{}
	for _, tpl := range catalog {
		if len(out) == limit {
			break
		}
		if useCase != "" && tpl.UseCase != useCase {
			continue
		}
		if query != "" {
			haystack := strings.ToLower(tpl.UseCase + " " + tpl.Name + " " + tpl.Body)
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		out = append(out, tpl.clone())
	}
	return out, nil
}

// UseCases lists the distinct use cases in catalog order.
func UseCases() []string {
	catalog, err := loadCatalog()
	if err != nil {
		return nil
	}
	var out []string
	for _, tpl := range catalog {
		if !slices.Contains(out, tpl.UseCase) {
			out = append(out, tpl.UseCase)
		}
	}
	return out
}

func (t Template) clone() Template {
	vars := make([]template.Variable, len(t.Variables))
	for i, v := range t.Variables {
		v.Options = slices.Clone(v.Options)
		vars[i] = v
	}
	t.Variables = vars
	return t
}
