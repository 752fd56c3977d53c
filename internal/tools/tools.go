// Package tools is the closed set of PromptFill operations an agent can
// invoke. The Router validates arguments, dispatches to the template engine
// or the template store, and wraps every outcome in a kind-tagged envelope.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
)

// DescriptionPrefix starts every tool description.
const DescriptionPrefix = "Use this when the user wants to"

// Tool names.
const (
	ExtractPromptFields = "extract_prompt_fields"
	RenderPrompt        = "render_prompt"
	SaveTemplate        = "save_template"
	ListTemplates       = "list_templates"
	GetTemplate         = "get_template"
	SearchTemplates     = "search_templates"
	UpdateTemplate      = "update_template"
	DeleteTemplate      = "delete_template"
	SuggestTemplates    = "suggest_templates"
)

// Definition describes a tool to transports and agents.
type Definition struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ReadOnly    bool            `json:"read_only"`
	Destructive bool            `json:"destructive"`
	Invoking    string          `json:"invoking"`
	Invoked     string          `json:"invoked"`
	Widget      bool            `json:"widget"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Result is a successful tool call: the structured envelope plus a one-line
// summary for transcripts.
type Result struct {
	Structured any
	Text       string
}

// Error is a failed tool call. Code is one of the internal/errors codes.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	err     error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Envelope converts e into a gofulmen error envelope bound to ctx's
// correlation ID.
func (e *Error) Envelope(ctx context.Context) *gferrors.ErrorEnvelope {
	return apperrors.Wrap(ctx, e.Code, e.err, e.Message)
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Code: apperrors.CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// AsError maps err onto a tool Error. Unclassified errors take fallback.
func AsError(err error, fallback string) *Error {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr
	}

	code := fallback
	switch {
	case errors.Is(err, template.ErrInvalidPlaceholder):
		code = apperrors.CodeInvalidPlaceholder
	case errors.Is(err, store.ErrNotFound):
		code = apperrors.CodeNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		code = apperrors.CodeAlreadyExists
	case errors.Is(err, store.ErrConflict):
		code = apperrors.CodeConflict
	case errors.Is(err, store.ErrInvalidInput):
		code = apperrors.CodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		code = apperrors.CodeTimeout
	}
	return &Error{Code: code, Message: err.Error(), err: err}
}
