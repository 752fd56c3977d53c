package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptfill/promptfill/internal/core/starter"
	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
)

const defaultSearchLimit = 10

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// storeError classifies a store failure, treating unknown errors as
// database errors.
func storeError(err error) error {
	return AsError(err, apperrors.CodeDatabaseError)
}

func (r *Router) extractFields(_ context.Context, in *ExtractInput) (Result, error) {
	opts := r.extract
	if in.Strict != nil {
		opts.Strict = *in.Strict
	}
	extraction := template.Extract(in.PromptText, opts)

	notes := extraction.Notes
	if notes == nil {
		notes = []string{}
	}
	count := len(extraction.Variables)
	return Result{
		Structured: ExtractionOutput{
			Kind:         KindExtraction,
			SourcePrompt: in.PromptText,
			Template:     extraction.Body,
			Variables:    nonNilVariables(extraction.Variables),
			Values:       extraction.IdentityFill(),
			Notes:        notes,
			Summary:      ExtractionSummary{VariableCount: count},
		},
		Text: fmt.Sprintf("Found %d %s.", count, plural(count, "field", "fields")),
	}, nil
}

func (r *Router) render(_ context.Context, in *RenderInput) (Result, error) {
	filled := template.Fill(in.Template, in.Variables, in.Values)

	text := "Rendered prompt is ready."
	if len(filled.MissingRequired) > 0 {
		text = fmt.Sprintf("Still missing required fields: %s.", strings.Join(filled.MissingRequired, ", "))
	}
	return Result{
		Structured: RenderOutput{
			Kind:            KindRender,
			RenderedPrompt:  filled.Text,
			MissingRequired: filled.MissingRequired,
		},
		Text: text,
	}, nil
}

func (r *Router) save(ctx context.Context, in *SaveInput) (Result, error) {
	saved, err := r.store.Save(ctx, store.SaveInput{
		Name:        in.Name,
		Body:        in.Template,
		Description: in.Description,
		Variables:   in.Variables,
	})
	if err != nil {
		return Result{}, storeError(err)
	}
	return Result{
		Structured: SaveOutput{Kind: KindSave, Template: summarize(*saved)},
		Text:       fmt.Sprintf("Saved template %q.", saved.Name),
	}, nil
}

func (r *Router) list(ctx context.Context, _ *ListInput) (Result, error) {
	list, err := r.store.List(ctx)
	if err != nil {
		return Result{}, storeError(err)
	}

	text := "No saved templates yet."
	if n := len(list); n > 0 {
		text = fmt.Sprintf("Found %d saved %s.", n, plural(n, "template", "templates"))
	}
	return Result{
		Structured: ListOutput{Kind: KindList, Templates: summarizeAll(list)},
		Text:       text,
	}, nil
}

func (r *Router) get(ctx context.Context, in *GetInput) (Result, error) {
	tpl, err := r.store.Get(ctx, in.Name)
	if err != nil {
		return Result{}, storeError(err)
	}

	out := GetOutput{Kind: KindGet, Template: detail(*tpl)}
	text := fmt.Sprintf("Loaded template %q.", tpl.Name)

	if in.Version > 0 && in.Version != tpl.Version {
		v, err := r.store.Version(ctx, tpl.Name, in.Version)
		if err != nil {
			return Result{}, storeError(err)
		}
		out.Template = versionDetail(*tpl, *v)
		text = fmt.Sprintf("Loaded template %q at version %d.", tpl.Name, v.Number)
	}

	if in.IncludeVersions {
		versions, err := r.store.Versions(ctx, tpl.Name, 0)
		if err != nil {
			return Result{}, storeError(err)
		}
		out.Versions = summarizeVersions(versions)
	}

	return Result{Structured: out, Text: text}, nil
}

func (r *Router) search(ctx context.Context, in *SearchInput) (Result, error) {
	limit := in.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	found, err := r.store.Search(ctx, in.Query, limit)
	if err != nil {
		return Result{}, storeError(err)
	}

	text := "No matching templates found."
	if n := len(found); n > 0 {
		text = fmt.Sprintf("Found %d template %s.", n, plural(n, "match", "matches"))
	}
	return Result{
		Structured: SearchOutput{Kind: KindSearch, Query: in.Query, Templates: summarizeAll(found)},
		Text:       text,
	}, nil
}

func (r *Router) update(ctx context.Context, in *UpdateInput) (Result, error) {
	updated, err := r.store.Update(ctx, in.Name, store.UpdateInput{
		Body:        in.Template,
		Description: in.Description,
		Variables:   in.Variables,
	})
	if err != nil {
		return Result{}, storeError(err)
	}
	return Result{
		Structured: UpdateOutput{Kind: KindUpdate, Updated: true, Template: summarize(*updated)},
		Text:       fmt.Sprintf("Updated template %q to version %d.", updated.Name, updated.Version),
	}, nil
}

func (r *Router) delete(ctx context.Context, in *DeleteInput) (Result, error) {
	name := strings.TrimSpace(in.Name)
	if err := r.store.Delete(ctx, name); err != nil {
		return Result{}, storeError(err)
	}
	return Result{
		Structured: DeleteOutput{Kind: KindDelete, Name: name, Deleted: true},
		Text:       fmt.Sprintf("Deleted template %q.", name),
	}, nil
}

func (r *Router) suggest(_ context.Context, in *SuggestInput) (Result, error) {
	suggested, err := starter.Suggest(in.UseCase, in.Query, in.Limit)
	if err != nil {
		return Result{}, AsError(err, apperrors.CodeInternal)
	}

	text := "No starter templates matched that request."
	if n := len(suggested); n > 0 {
		text = fmt.Sprintf("Suggested %d starter %s.", n, plural(n, "template", "templates"))
	}
	return Result{
		Structured: SuggestOutput{Kind: KindSuggest, UseCase: in.UseCase, Templates: summarizeStarters(suggested)},
		Text:       text,
	}, nil
}
