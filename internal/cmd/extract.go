package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/output"
)

func newExtractCmd() *cobra.Command {
	var (
		strict   bool
		asJSON   bool
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Propose a template and fields for a rough prompt",
		Long: `Read a prompt from a file or stdin and propose a reusable template:
recipients, companies, dates, amounts and labelled values become
{{placeholders}} with inferred variable metadata.

With --strict every byte outside the detected fields is preserved, so
rendering the template with the detected values reproduces the input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readSource(cmd, path)
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return apperrors.WrapInvalidInput(ctx, nil, "prompt text is empty")
			}

			opts := template.ExtractOptions{
				Strict:        cfg.Extract.Strict,
				MinConfidence: cfg.Extract.MinConfidence,
			}
			if cmd.Flags().Changed("strict") {
				opts.Strict = strict
			}
			if cmd.Flags().Changed("min-confidence") {
				opts.MinConfidence = minScore
			}

			result := template.Extract(string(data), opts)
			observability.CLILogger.Debug("Extracted prompt fields",
				zap.Int("variables", len(result.Variables)),
				zap.Int("spans", len(result.Spans)),
				zap.Bool("strict", opts.Strict))

			if asJSON {
				outputFormat = string(output.FormatJSON)
			}
			return emit(cmd, func(f output.Formatter) (string, error) {
				return f.Extraction(result)
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "preserve every byte outside detected fields")
	cmd.Flags().BoolVar(&asJSON, "json", false, "shorthand for --output json")
	cmd.Flags().Float64Var(&minScore, "min-confidence", 0, "drop detected fields scored below this confidence")
	return cmd
}

func init() {
	rootCmd.AddCommand(newExtractCmd())
}
