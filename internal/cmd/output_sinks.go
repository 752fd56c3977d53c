package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/output"
	"github.com/promptfill/promptfill/internal/tools"
)

func resolveOutputFormat() (output.Format, error) {
	return output.ParseFormat(outputFormat)
}

// emit renders a result with the --output formatter and writes it to the
// command's stdout.
func emit(cmd *cobra.Command, render func(output.Formatter) (string, error)) error {
	format, err := resolveOutputFormat()
	if err != nil {
		return apperrors.Wrap(cmd.Context(), apperrors.CodeInvalidInput, err, err.Error())
	}
	text, err := render(output.NewFormatter(format))
	if err != nil {
		return apperrors.WrapInternal(cmd.Context(), err, "render output: "+err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(text, "\n"))
	return err
}

// storeFailure classifies a store error into an envelope; unknown causes
// are database errors.
func storeFailure(ctx context.Context, err error, action string) error {
	toolErr := tools.AsError(err, apperrors.CodeDatabaseError)
	return apperrors.Wrap(ctx, toolErr.Code, err, action+": "+err.Error())
}

// readSource reads a named file, or stdin for "" and "-".
func readSource(cmd *cobra.Command, path string) ([]byte, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, apperrors.WrapInvalidInput(cmd.Context(), err, "read stdin: "+err.Error())
		}
		return data, nil
	}

	// #nosec G304 -- path is an explicit CLI argument
	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, apperrors.WrapInvalidInput(cmd.Context(), err, fmt.Sprintf("read %s: %v", trimmed, err))
	}
	return data, nil
}
