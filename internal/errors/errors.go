// Package errors builds the gofulmen error envelopes PromptFill returns from
// the HTTP API, the tool router and the CLI.
package errors

import (
	"context"
	stderrors "errors"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/promptfill/promptfill/internal/server/middleware"
)

// Error codes shared by the HTTP API, the tool router and the CLI.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidPlaceholder  = "INVALID_PLACEHOLDER"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeConflict            = "CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeTimeout             = "TIMEOUT"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeInternal            = "INTERNAL_ERROR"
)

// causeKey is the envelope context key holding the wrapped error text.
const causeKey = "wrapped_error"

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewInvalidPlaceholderError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidPlaceholder, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewAlreadyExistsError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeAlreadyExists, message)
}

func NewUnauthorizedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnauthorized, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewUpstreamUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUpstreamUnavailable, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

// Wrap builds an envelope for code carrying err's text and the request id
// from ctx. Severity follows the code: store and internal failures are high,
// dependency and contention failures medium.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	id := correlationID(ctx)
	envelope = envelope.WithCorrelationID(id).WithTraceID(id)
	if err != nil {
		if updated, ctxErr := envelope.WithContext(map[string]interface{}{causeKey: err.Error()}); ctxErr == nil {
			envelope = updated
		}
	}

	switch code {
	case CodeInternal, CodeDatabaseError:
		if updated, sevErr := envelope.WithSeverity(errors.SeverityHigh); sevErr == nil {
			envelope = updated
		}
	case CodeUpstreamUnavailable, CodeServiceUnavailable, CodeTimeout, CodeConflict:
		if updated, sevErr := envelope.WithSeverity(errors.SeverityMedium); sevErr == nil {
			envelope = updated
		}
	}
	return envelope
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInvalidInput, err, message)
}

func WrapNotFound(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeNotFound, err, message)
}

func WrapUnauthorized(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeUnauthorized, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInternal, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeDatabaseError, err, message)
}

func WrapUpstreamUnavailable(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeUpstreamUnavailable, err, message)
}

// Cause returns the wrapped error text recorded by Wrap, or "".
func Cause(envelope *errors.ErrorEnvelope) string {
	if envelope == nil {
		return ""
	}
	cause, _ := envelope.Context[causeKey].(string)
	return cause
}

// EnsureEnvelope returns the envelope inside err, or wraps err as INTERNAL_ERROR.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}
	if err == nil {
		envelope = errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
		return envelope
	}
	return Wrap(context.Background(), CodeInternal, err, "unexpected error")
}

// correlationID is the request id carried by ctx, or a fresh one.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return errors.GenerateCorrelationID()
}
