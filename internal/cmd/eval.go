package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/core/store"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/llm"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/output"
	"github.com/promptfill/promptfill/internal/routing"
	"github.com/promptfill/promptfill/internal/tools"
)

func newEvalCmd() *cobra.Command {
	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Run model-backed evaluations",
	}

	var (
		model       string
		minAccuracy float64
		reportPath  string
		required    bool
	)
	routingCmd := &cobra.Command{
		Use:   "routing",
		Short: "Measure how reliably a model picks the right tool",
		Long: `Ask an OpenAI-compatible model to route each golden prompt to one tool name
or NONE, then report per-bucket and overall accuracy. The command fails when
overall accuracy is below eval.min_accuracy.

Without an API key the run is skipped, unless eval.required is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := observability.CLILogger

			overrides := map[string]any{}
			if cmd.Flags().Changed("model") {
				overrides["model"] = model
			}
			if cmd.Flags().Changed("min-accuracy") {
				overrides["min_accuracy"] = minAccuracy
			}
			if cmd.Flags().Changed("report") {
				overrides["report_path"] = reportPath
			}
			if cmd.Flags().Changed("required") {
				overrides["required"] = required
			}
			layer := map[string]any{"eval": overrides}

			cfg, err := loadConfig(ctx, layer)
			if err != nil {
				return err
			}
			if err := routing.LoadEnvFile(cfg.Eval.EnvFile); err != nil {
				return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, err.Error())
			}
			// The env file may have supplied the API key.
			if cfg, err = loadConfig(ctx, layer); err != nil {
				return err
			}

			if strings.TrimSpace(cfg.Eval.APIKey) == "" {
				if cfg.Eval.Required {
					return apperrors.WrapUpstreamUnavailable(ctx, nil,
						"routing eval requires an API key (set PROMPTFILL_EVAL_API_KEY or OPENAI_API_KEY)")
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Skipping routing eval: no API key configured.")
				return err
			}

			golden, err := routing.LoadGolden()
			if err != nil {
				return apperrors.WrapInternal(ctx, err, err.Error())
			}
			router, err := tools.NewRouter(store.NewMemory())
			if err != nil {
				return apperrors.WrapInternal(ctx, err, "build tool router")
			}

			client := llm.NewClient(cfg.Eval.BaseURL, cfg.Eval.APIKey)
			client.Timeout = cfg.Eval.Timeout

			log.Info("Running routing eval",
				zap.String("model", cfg.Eval.Model),
				zap.Int("prompts", len(golden.Direct)+len(golden.Indirect)+len(golden.Negative)),
				zap.Int("concurrency", cfg.Eval.Concurrency))

			report, err := routing.Run(ctx, client, golden, routing.Options{
				Model:       cfg.Eval.Model,
				Tools:       router.Names(),
				MinAccuracy: cfg.Eval.MinAccuracy,
				Concurrency: cfg.Eval.Concurrency,
			})
			if err != nil {
				return apperrors.WrapUpstreamUnavailable(ctx, err, "routing eval: "+err.Error())
			}

			if path := strings.TrimSpace(cfg.Eval.ReportPath); path != "" {
				if err := routing.WriteReport(path, report); err != nil {
					return apperrors.WrapInternal(ctx, err, err.Error())
				}
				log.Info("Wrote routing report", zap.String("path", path))
			}

			if err := emit(cmd, func(f output.Formatter) (string, error) { return f.RoutingReport(report) }); err != nil {
				return err
			}

			if !report.Passed() {
				return fmt.Errorf("routing accuracy %.1f%% is below the %.1f%% threshold",
					report.Overall.Accuracy*100, report.MinAccuracy*100)
			}
			return nil
		},
	}
	routingCmd.Flags().StringVar(&model, "model", "", "model name (default from eval.model)")
	routingCmd.Flags().Float64Var(&minAccuracy, "min-accuracy", 0, "required overall accuracy in (0, 1]")
	routingCmd.Flags().StringVar(&reportPath, "report", "", "JSON report path (default from eval.report_path)")
	routingCmd.Flags().BoolVar(&required, "required", false, "fail instead of skipping when no API key is configured")

	evalCmd.AddCommand(routingCmd)
	return evalCmd
}

func init() {
	rootCmd.AddCommand(newEvalCmd())
}
