package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/output"
)

func newRenderCmd() *cobra.Command {
	var (
		body       string
		file       string
		name       string
		values     string
		valuesFile string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Fill a template with values",
		Long: `Render a template body with a JSON object of values. The body comes from
--template, --file, or a saved template via --name. Object values are inserted
as compact JSON with their key order preserved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sources := 0
			for _, set := range []bool{body != "", file != "", name != ""} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return apperrors.WrapInvalidInput(ctx, nil, "exactly one of --template, --file or --name is required")
			}
			if values != "" && valuesFile != "" {
				return apperrors.WrapInvalidInput(ctx, nil, "--values and --values-file are mutually exclusive")
			}

			var variables []template.Variable
			switch {
			case file != "":
				data, err := readSource(cmd, file)
				if err != nil {
					return err
				}
				body = string(data)
			case name != "":
				cfg, err := loadConfig(ctx)
				if err != nil {
					return err
				}
				templates, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = templates.Close() }()
				stored, err := templates.Get(ctx, name)
				if err != nil {
					return storeFailure(ctx, err, "get template")
				}
				body = stored.Body
				variables = stored.Variables
			}

			raw := []byte(values)
			if valuesFile != "" {
				data, err := readSource(cmd, valuesFile)
				if err != nil {
					return err
				}
				raw = data
			}
			bag := template.NewObject()
			if strings.TrimSpace(string(raw)) != "" {
				parsed, err := template.ParseBag(raw)
				if err != nil {
					return apperrors.WrapInvalidInput(ctx, err, "values must be a JSON object: "+err.Error())
				}
				bag = parsed
			}

			result := template.Fill(body, variables, bag)
			if len(result.MissingRequired) > 0 {
				observability.CLILogger.Warn("Required fields are still empty",
					zap.Strings("missing_required", result.MissingRequired))
			}

			format, err := resolveOutputFormat()
			if err != nil {
				return apperrors.WrapInvalidInput(ctx, err, err.Error())
			}
			if format == output.FormatJSON {
				return emit(cmd, func(f output.Formatter) (string, error) {
					return f.FillResult(result)
				})
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), result.Text)
			return err
		},
	}

	cmd.Flags().StringVar(&body, "template", "", "template body")
	cmd.Flags().StringVar(&file, "file", "", "read the template body from a file (- for stdin)")
	cmd.Flags().StringVar(&name, "name", "", "render a saved template")
	cmd.Flags().StringVar(&values, "values", "", "JSON object of values")
	cmd.Flags().StringVar(&valuesFile, "values-file", "", "read the values object from a file (- for stdin)")
	return cmd
}

func init() {
	rootCmd.AddCommand(newRenderCmd())
}
