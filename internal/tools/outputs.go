package tools

import (
	"time"

	"github.com/promptfill/promptfill/internal/core/starter"
	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
)

// Envelope kinds.
const (
	KindExtraction = "extraction"
	KindRender     = "render"
	KindSave       = "save"
	KindList       = "list"
	KindGet        = "get"
	KindSearch     = "search"
	KindUpdate     = "update"
	KindDelete     = "delete"
	KindSuggest    = "suggest"
)

// TemplateSummary is the compact listing form of a stored template.
type TemplateSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Version       int       `json:"version"`
	VariableCount int       `json:"variable_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TemplateDetail is the full form of a stored template or one of its
// versions.
type TemplateDetail struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Template    string              `json:"template"`
	Variables   []template.Variable `json:"variables"`
	Version     int                 `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// VersionSummary is one entry of a template's history.
type VersionSummary struct {
	ID            string    `json:"id"`
	Version       int       `json:"version_number"`
	Description   string    `json:"description,omitempty"`
	VariableCount int       `json:"variable_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type ExtractionSummary struct {
	VariableCount int `json:"variable_count"`
}

type ExtractionOutput struct {
	Kind         string              `json:"kind"`
	SourcePrompt string              `json:"source_prompt"`
	Template     string              `json:"template"`
	Variables    []template.Variable `json:"variables"`
	Values       *template.Object    `json:"values"`
	Notes        []string            `json:"notes"`
	Summary      ExtractionSummary   `json:"summary"`
}

type RenderOutput struct {
	Kind            string   `json:"kind"`
	RenderedPrompt  string   `json:"rendered_prompt"`
	MissingRequired []string `json:"missing_required"`
}

type SaveOutput struct {
	Kind     string          `json:"kind"`
	Template TemplateSummary `json:"template"`
}

type ListOutput struct {
	Kind      string            `json:"kind"`
	Templates []TemplateSummary `json:"templates"`
}

type GetOutput struct {
	Kind     string           `json:"kind"`
	Template TemplateDetail   `json:"template"`
	Versions []VersionSummary `json:"versions,omitempty"`
}

type SearchOutput struct {
	Kind      string            `json:"kind"`
	Query     string            `json:"query"`
	Templates []TemplateSummary `json:"templates"`
}

type UpdateOutput struct {
	Kind     string          `json:"kind"`
	Updated  bool            `json:"updated"`
	Template TemplateSummary `json:"template"`
}

type DeleteOutput struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// StarterSummary is a suggested starter template.
type StarterSummary struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	UseCase       string              `json:"use_case"`
	Template      string              `json:"template"`
	Variables     []template.Variable `json:"variables"`
	VariableCount int                 `json:"variable_count"`
}

type SuggestOutput struct {
	Kind      string           `json:"kind"`
	UseCase   string           `json:"use_case"`
	Templates []StarterSummary `json:"templates"`
}

func summarize(tpl store.Template) TemplateSummary {
	return TemplateSummary{
		ID:            tpl.ID,
		Name:          tpl.Name,
		Description:   tpl.Description,
		Version:       tpl.Version,
		VariableCount: len(tpl.Variables),
		CreatedAt:     tpl.CreatedAt,
		UpdatedAt:     tpl.UpdatedAt,
	}
}

func summarizeAll(list []store.Template) []TemplateSummary {
	out := make([]TemplateSummary, 0, len(list))
	for _, tpl := range list {
		out = append(out, summarize(tpl))
	}
	return out
}

func detail(tpl store.Template) TemplateDetail {
	return TemplateDetail{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Description: tpl.Description,
		Template:    tpl.Body,
		Variables:   nonNilVariables(tpl.Variables),
		Version:     tpl.Version,
		CreatedAt:   tpl.CreatedAt,
		UpdatedAt:   tpl.UpdatedAt,
	}
}

// versionDetail presents a historical snapshot in the shape of the template
// it belongs to.
func versionDetail(tpl store.Template, v store.Version) TemplateDetail {
	return TemplateDetail{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Description: v.Description,
		Template:    v.Body,
		Variables:   nonNilVariables(v.Variables),
		Version:     v.Number,
		CreatedAt:   tpl.CreatedAt,
		UpdatedAt:   v.CreatedAt,
	}
}

func summarizeVersions(list []store.Version) []VersionSummary {
	out := make([]VersionSummary, 0, len(list))
	for _, v := range list {
		out = append(out, VersionSummary{
			ID:            v.ID,
			Version:       v.Number,
			Description:   v.Description,
			VariableCount: len(v.Variables),
			CreatedAt:     v.CreatedAt,
		})
	}
	return out
}

func summarizeStarters(list []starter.Template) []StarterSummary {
	out := make([]StarterSummary, 0, len(list))
	for _, tpl := range list {
		out = append(out, StarterSummary{
			ID:            tpl.ID,
			Name:          tpl.Name,
			UseCase:       tpl.UseCase,
			Template:      tpl.Body,
			Variables:     nonNilVariables(tpl.Variables),
			VariableCount: len(tpl.Variables),
		})
	}
	return out
}

func nonNilVariables(vars []template.Variable) []template.Variable {
	if vars == nil {
		return []template.Variable{}
	}
	return vars
}
