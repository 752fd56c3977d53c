package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/metrics"
)

type validator interface {
	validate() error
}

type entry struct {
	def    Definition
	handle func(ctx context.Context, raw []byte) (Result, error)
}

// Router dispatches tool calls by name. It holds no per-call state.
type Router struct {
	store   store.TemplateStore
	extract template.ExtractOptions
	logger  *logging.Logger

	entries map[string]entry
	order   []string
}

// Option configures a Router.
type Option func(*Router)

// WithExtractOptions sets the extractor defaults for extract_prompt_fields.
func WithExtractOptions(opts template.ExtractOptions) Option {
	return func(r *Router) { r.extract = opts }
}

// WithLogger logs each dispatch at debug level and failures at warn.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// NewRouter builds the dispatch table over templates.
func NewRouter(templates store.TemplateStore, opts ...Option) (*Router, error) {
	if templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	r := &Router{store: templates, entries: map[string]entry{}}
	for _, opt := range opts {
		opt(r)
	}

	regs := []error{
		register(r, Definition{
			Name:        ExtractPromptFields,
			Title:       "Extract prompt fields",
			Description: "Use this when the user wants to turn raw prompt text into fillable fields.",
			ReadOnly:    true,
			Invoking:    "Extracting fields...",
			Invoked:     "Fields ready",
			Widget:      true,
		}, r.extractFields),
		register(r, Definition{
			Name:        RenderPrompt,
			Title:       "Render final prompt",
			Description: "Use this when the user wants to render their filled template into final prompt text.",
			ReadOnly:    true,
			Invoking:    "Rendering prompt...",
			Invoked:     "Rendered",
			Widget:      true,
		}, r.render),
		register(r, Definition{
			Name:        SaveTemplate,
			Title:       "Save prompt template",
			Description: "Use this when the user wants to save a reusable prompt template for later use.",
			Invoking:    "Saving template...",
			Invoked:     "Saved",
		}, r.save),
		register(r, Definition{
			Name:        ListTemplates,
			Title:       "List saved templates",
			Description: "Use this when the user wants to see which PromptFill templates are already saved.",
			ReadOnly:    true,
			Invoking:    "Loading templates...",
			Invoked:     "Templates ready",
			Widget:      true,
		}, r.list),
		register(r, Definition{
			Name:        GetTemplate,
			Title:       "Get saved template details",
			Description: "Use this when the user wants to open one saved PromptFill template by name.",
			ReadOnly:    true,
			Invoking:    "Loading template...",
			Invoked:     "Template loaded",
			Widget:      true,
		}, r.get),
		register(r, Definition{
			Name:        SearchTemplates,
			Title:       "Search saved templates",
			Description: "Use this when the user wants to quickly find saved PromptFill templates.",
			ReadOnly:    true,
			Invoking:    "Searching templates...",
			Invoked:     "Search complete",
			Widget:      true,
		}, r.search),
		register(r, Definition{
			Name:        UpdateTemplate,
			Title:       "Update a saved template",
			Description: "Use this when the user wants to change an existing saved PromptFill template.",
			Invoking:    "Updating template...",
			Invoked:     "Updated",
		}, r.update),
		register(r, Definition{
			Name:        DeleteTemplate,
			Title:       "Delete a saved template",
			Description: "Use this when the user wants to remove a saved PromptFill template.",
			Destructive: true,
			Invoking:    "Deleting template...",
			Invoked:     "Deleted",
		}, r.delete),
		register(r, Definition{
			Name:        SuggestTemplates,
			Title:       "Suggest starter templates",
			Description: "Use this when the user wants to start from high-quality PromptFill templates.",
			ReadOnly:    true,
			Invoking:    "Finding starter templates...",
			Invoked:     "Starter templates ready",
			Widget:      true,
		}, r.suggest),
	}
	for _, err := range regs {
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func register[T any, P interface {
	*T
	validator
}](r *Router, def Definition, fn func(ctx context.Context, in *T) (Result, error)) error {
	schema, err := inputSchema[T]()
	if err != nil {
		return fmt.Errorf("tool %s: %w", def.Name, err)
	}
	def.InputSchema = schema

	r.entries[def.Name] = entry{
		def: def,
		handle: func(ctx context.Context, raw []byte) (Result, error) {
			in := new(T)
			if err := decodeStrict(raw, in); err != nil {
				return Result{}, invalidInput("invalid arguments for %s: %v", def.Name, err)
			}
			if err := P(in).validate(); err != nil {
				return Result{}, err
			}
			return fn(ctx, in)
		},
	}
	r.order = append(r.order, def.Name)
	return nil
}

// decodeStrict rejects unknown fields and trailing data. Empty input decodes
// as an empty object.
func decodeStrict(raw []byte, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after arguments")
	}
	return nil
}

// Definitions returns every tool in registration order.
func (r *Router) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].def)
	}
	return out
}

// Lookup returns the definition of name.
func (r *Router) Lookup(name string) (Definition, bool) {
	e, ok := r.entries[name]
	return e.def, ok
}

// Names lists the tool names in registration order.
func (r *Router) Names() []string {
	return slices.Clone(r.order)
}

// Call validates raw against the named tool and runs it. Failures are
// returned as *Error.
func (r *Router) Call(ctx context.Context, name string, raw []byte) (Result, error) {
	start := time.Now()

	e, ok := r.entries[name]
	if !ok {
		err := invalidInput("unknown tool %q", name)
		metrics.RecordToolCall(name, err.Code, time.Since(start))
		return Result{}, err
	}

	result, err := e.handle(ctx, raw)
	if err != nil {
		toolErr := AsError(err, apperrors.CodeInternal)
		metrics.RecordToolCall(name, toolErr.Code, time.Since(start))
		if r.logger != nil {
			r.logger.Warn("Tool call failed",
				zap.String("tool", name),
				zap.String("code", toolErr.Code),
				zap.String("message", toolErr.Message))
		}
		return Result{}, toolErr
	}

	metrics.RecordToolCall(name, "", time.Since(start))
	if r.logger != nil {
		r.logger.Debug("Tool call completed",
			zap.String("tool", name),
			zap.Duration("duration", time.Since(start)))
	}
	return result, nil
}
