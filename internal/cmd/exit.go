package cmd

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/tools"
)

// ExitCodeFor maps a command error onto a foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	switch envelopeCode(err) {
	case apperrors.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case apperrors.CodeUpstreamUnavailable:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

func envelopeCode(err error) string {
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		return envelope.Code
	}
	var toolErr *tools.Error
	if stderrors.As(err, &toolErr) {
		return toolErr.Code
	}
	return ""
}

// ExitWithCode logs msg and err with the exit code metadata, then exits. A
// nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}
	logger.Error(msg, exitFields(info.Code, info.Name, info.Category, err)...)
	os.Exit(info.Code)
}

// ExitWithCodeStderr reports msg and err on stderr, then exits. Used before
// the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	code, name, description := int(exitCode), "UNKNOWN", ""
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		code, name, description = info.Code, info.Name, info.Description
	}
	fmt.Fprint(os.Stderr, exitReport(code, name, description, msg, err))
	os.Exit(code)
}

func exitFields(code int, name, category string, err error) []zap.Field {
	fields := []zap.Field{
		zap.Int("exit_code", code),
		zap.String("exit_name", name),
		zap.String("exit_category", category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if len(envelope.Context) > 0 {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// exitReport renders the stderr text for a fatal exit.
func exitReport(code int, name, description, msg string, err error) string {
	var b strings.Builder
	b.WriteString("FATAL: " + msg)
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.As(err, &envelope):
		fmt.Fprintf(&b, " [%s]: %s", envelope.Code, envelope.Message)
		if cause := apperrors.Cause(envelope); cause != "" {
			b.WriteString("\nCause: " + cause)
		}
	case err != nil:
		fmt.Fprintf(&b, ": %v", err)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Exit Code: %d (%s)", code, name)
	if description != "" {
		b.WriteString(" - " + description)
	}
	b.WriteString("\n")
	return b.String()
}
