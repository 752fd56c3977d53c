package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptfill/promptfill/internal/config"
	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/output"
	"github.com/promptfill/promptfill/internal/tools"
)

func newRouter(cfg *config.Config, templates store.TemplateStore) (*tools.Router, error) {
	return tools.NewRouter(templates,
		tools.WithExtractOptions(template.ExtractOptions{
			Strict:        cfg.Extract.Strict,
			MinConfidence: cfg.Extract.MinConfidence,
		}),
		tools.WithLogger(observability.CLILogger),
	)
}

func newToolsCmd() *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and call the agent tools",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := tools.NewRouter(store.NewMemory())
			if err != nil {
				return apperrors.WrapInternal(cmd.Context(), err, "build tool router")
			}
			return emit(cmd, func(f output.Formatter) (string, error) {
				return f.Tools(router.Definitions())
			})
		},
	}

	var (
		argsJSON string
		argsFile string
	)
	callCmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Call a tool with JSON arguments against the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if argsJSON != "" && argsFile != "" {
				return apperrors.WrapInvalidInput(ctx, nil, "--args and --args-file are mutually exclusive")
			}
			raw := []byte(argsJSON)
			if argsFile != "" {
				data, err := readSource(cmd, argsFile)
				if err != nil {
					return err
				}
				raw = data
			}
			if strings.TrimSpace(string(raw)) == "" {
				raw = []byte("{}")
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			templates, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = templates.Close() }()

			router, err := newRouter(cfg, templates)
			if err != nil {
				return apperrors.WrapInternal(ctx, err, "build tool router")
			}
			result, err := router.Call(ctx, args[0], raw)
			if err != nil {
				return tools.AsError(err, apperrors.CodeInternal).Envelope(ctx)
			}

			observability.CLILogger.Info(result.Text)
			data, err := json.MarshalIndent(result.Structured, "", "  ")
			if err != nil {
				return apperrors.WrapInternal(ctx, err, "encode tool result")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	callCmd.Flags().StringVar(&argsJSON, "args", "", "JSON object of tool arguments")
	callCmd.Flags().StringVar(&argsFile, "args-file", "", "read tool arguments from a file (- for stdin)")

	toolsCmd.AddCommand(listCmd, callCmd)
	return toolsCmd
}

func init() {
	rootCmd.AddCommand(newToolsCmd())
}
