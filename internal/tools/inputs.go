package tools

import (
	"strings"

	"github.com/promptfill/promptfill/internal/core/template"
)

// ExtractInput is the argument object of extract_prompt_fields.
type ExtractInput struct {
	PromptText string `json:"prompt_text" jsonschema:"required,minLength=1,description=Raw prompt text to structure."`
	Strict     *bool  `json:"strict,omitempty" jsonschema:"description=Keep every byte outside detected fields and never merge distinct values."`
}

func (in *ExtractInput) validate() error {
	if strings.TrimSpace(in.PromptText) == "" {
		return invalidInput("prompt_text is required")
	}
	return nil
}

// RenderInput is the argument object of render_prompt.
type RenderInput struct {
	Template  string              `json:"template" jsonschema:"required,minLength=1,description=Prompt template containing {{variables}}."`
	Variables []template.Variable `json:"variables,omitempty" jsonschema:"description=Variable schema for validation and defaults."`
	Values    *template.Object    `json:"values,omitempty" jsonschema:"description=Current user-provided values keyed by variable name. Nested objects resolve dotted paths."`
}

func (in *RenderInput) validate() error {
	if in.Template == "" {
		return invalidInput("template is required")
	}
	return nil
}

// SaveInput is the argument object of save_template.
type SaveInput struct {
	Name        string              `json:"name" jsonschema:"required,minLength=1,maxLength=128,description=Unique template name."`
	Template    string              `json:"template" jsonschema:"required,minLength=1,description=Prompt template text."`
	Description string              `json:"description,omitempty" jsonschema:"description=Optional note about when to use the template."`
	Variables   []template.Variable `json:"variables,omitempty" jsonschema:"description=Optional variable schema."`
}

func (in *SaveInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidInput("name is required")
	}
	if strings.TrimSpace(in.Template) == "" {
		return invalidInput("template is required")
	}
	return nil
}

// ListInput is the argument object of list_templates.
type ListInput struct{}

func (in *ListInput) validate() error { return nil }

// GetInput is the argument object of get_template.
type GetInput struct {
	Name            string `json:"name" jsonschema:"required,minLength=1,description=Template name to load."`
	Version         int    `json:"version,omitempty" jsonschema:"minimum=1,description=Load this historical version instead of the current one."`
	IncludeVersions bool   `json:"include_versions,omitempty" jsonschema:"description=Also return the version history, newest first."`
}

func (in *GetInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidInput("name is required")
	}
	if in.Version < 0 {
		return invalidInput("version must be positive")
	}
	return nil
}

// SearchInput is the argument object of search_templates.
type SearchInput struct {
	Query string `json:"query,omitempty" jsonschema:"description=Search text to match template names and content."`
	Limit int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=50,description=Maximum number of matches."`
}

func (in *SearchInput) validate() error {
	if in.Limit < 0 || in.Limit > 50 {
		return invalidInput("limit must be between 1 and 50")
	}
	return nil
}

// UpdateInput is the argument object of update_template.
type UpdateInput struct {
	Name        string              `json:"name" jsonschema:"required,minLength=1,description=Template name to update."`
	Template    *string             `json:"template,omitempty" jsonschema:"description=Updated template text."`
	Description *string             `json:"description,omitempty" jsonschema:"description=Updated description."`
	Variables   []template.Variable `json:"variables,omitempty" jsonschema:"description=Updated variable schema."`
}

func (in *UpdateInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidInput("name is required")
	}
	if in.Template == nil && in.Description == nil && in.Variables == nil {
		return invalidInput("no updates provided")
	}
	return nil
}

// DeleteInput is the argument object of delete_template.
type DeleteInput struct {
	Name string `json:"name" jsonschema:"required,minLength=1,description=Template name to delete."`
}

func (in *DeleteInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidInput("name is required")
	}
	return nil
}

// SuggestInput is the argument object of suggest_templates.
type SuggestInput struct {
	UseCase string `json:"use_case,omitempty" jsonschema:"description=Optional use case filter like email or summary or support or prd."`
	Query   string `json:"query,omitempty" jsonschema:"description=Optional free-text filter for starter template names."`
	Limit   int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=12,description=Maximum number of starter templates."`
}

func (in *SuggestInput) validate() error {
	if in.Limit < 0 || in.Limit > 12 {
		return invalidInput("limit must be between 1 and 12")
	}
	return nil
}
