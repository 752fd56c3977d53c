package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/core/template"
	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/observability"
	"github.com/promptfill/promptfill/internal/output"
)

// withStore loads config, opens the store and closes it after fn.
func withStore(cmd *cobra.Command, fn func(store.TemplateStore) error) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	templates, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = templates.Close() }()
	return fn(templates)
}

// bodyFlags are the template body sources shared by save and update.
type bodyFlags struct {
	body          string
	file          string
	description   string
	variablesFile string
}

func (b *bodyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.body, "template", "", "template body")
	cmd.Flags().StringVar(&b.file, "file", "", "read the template body from a file (- for stdin)")
	cmd.Flags().StringVar(&b.description, "description", "", "template description")
	cmd.Flags().StringVar(&b.variablesFile, "variables-file", "", "JSON array of variable metadata")
}

func (b *bodyFlags) resolveBody(cmd *cobra.Command) (*string, error) {
	if b.body != "" && b.file != "" {
		return nil, apperrors.WrapInvalidInput(cmd.Context(), nil, "--template and --file are mutually exclusive")
	}
	if b.file != "" {
		data, err := readSource(cmd, b.file)
		if err != nil {
			return nil, err
		}
		body := string(data)
		return &body, nil
	}
	if cmd.Flags().Changed("template") {
		return &b.body, nil
	}
	return nil, nil
}

func (b *bodyFlags) resolveVariables(cmd *cobra.Command) ([]template.Variable, error) {
	if b.variablesFile == "" {
		return nil, nil
	}
	data, err := readSource(cmd, b.variablesFile)
	if err != nil {
		return nil, err
	}
	vars := []template.Variable{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&vars); err != nil {
		return nil, apperrors.WrapInvalidInput(cmd.Context(), err, "variables must be a JSON array: "+err.Error())
	}
	return vars, nil
}

func parseVersion(cmd *cobra.Command, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, apperrors.WrapInvalidInput(cmd.Context(), err, fmt.Sprintf("version must be a positive integer, got %q", value))
	}
	return n, nil
}

func newTemplateCmd() *cobra.Command {
	templateCmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates", "tpl"},
		Short:   "Manage saved templates",
	}
	templateCmd.AddCommand(
		newTemplateSaveCmd(),
		newTemplateUpdateCmd(),
		newTemplateGetCmd(),
		newTemplateListCmd(),
		newTemplateSearchCmd(),
		newTemplateDeleteCmd(),
		newTemplateHistoryCmd(),
		newTemplateRestoreCmd(),
	)
	return templateCmd
}

func newTemplateSaveCmd() *cobra.Command {
	var flags bodyFlags
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a new template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			body, err := flags.resolveBody(cmd)
			if err != nil {
				return err
			}
			if body == nil {
				return apperrors.WrapInvalidInput(ctx, nil, "--template or --file is required")
			}
			vars, err := flags.resolveVariables(cmd)
			if err != nil {
				return err
			}

			return withStore(cmd, func(templates store.TemplateStore) error {
				saved, err := templates.Save(ctx, store.SaveInput{
					Name:        args[0],
					Body:        *body,
					Description: flags.description,
					Variables:   vars,
				})
				if err != nil {
					return storeFailure(ctx, err, "save template")
				}
				observability.CLILogger.Info("Template saved",
					zap.String("name", saved.Name), zap.Int("version", saved.Version))
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Template(saved) })
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newTemplateUpdateCmd() *cobra.Command {
	var flags bodyFlags
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update a template, recording a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := store.UpdateInput{}

			body, err := flags.resolveBody(cmd)
			if err != nil {
				return err
			}
			in.Body = body
			if cmd.Flags().Changed("description") {
				in.Description = &flags.description
			}
			if in.Variables, err = flags.resolveVariables(cmd); err != nil {
				return err
			}

			return withStore(cmd, func(templates store.TemplateStore) error {
				updated, err := templates.Update(ctx, args[0], in)
				if err != nil {
					return storeFailure(ctx, err, "update template")
				}
				observability.CLILogger.Info("Template updated",
					zap.String("name", updated.Name), zap.Int("version", updated.Version))
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Template(updated) })
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newTemplateGetCmd() *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(cmd, func(templates store.TemplateStore) error {
				current, err := templates.Get(ctx, args[0])
				if err != nil {
					return storeFailure(ctx, err, "get template")
				}
				if version > 0 && version != current.Version {
					snapshot, err := templates.Version(ctx, args[0], version)
					if err != nil {
						return storeFailure(ctx, err, "get template version")
					}
					current.Body = snapshot.Body
					current.Description = snapshot.Description
					current.Variables = snapshot.Variables
					current.CurrentVersionID = snapshot.ID
					current.Version = snapshot.Number
					current.UpdatedAt = snapshot.CreatedAt
				}
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Template(current) })
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "show a historical version")
	return cmd
}

func newTemplateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(cmd, func(templates store.TemplateStore) error {
				list, err := templates.List(ctx)
				if err != nil {
					return storeFailure(ctx, err, "list templates")
				}
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Templates(list) })
			})
		},
	}
}

func newTemplateSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search templates by name, body and variable names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(cmd, func(templates store.TemplateStore) error {
				found, err := templates.Search(ctx, args[0], limit)
				if err != nil {
					return storeFailure(ctx, err, "search templates")
				}
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Templates(found) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultSearchLimit, "maximum results (1-50)")
	return cmd
}

func newTemplateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a template and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(cmd, func(templates store.TemplateStore) error {
				if err := templates.Delete(ctx, args[0]); err != nil {
					return storeFailure(ctx, err, "delete template")
				}
				observability.CLILogger.Info("Template deleted", zap.String("name", args[0]))
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return err
			})
		},
	}
}

func newTemplateHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "List the versions of a template, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(cmd, func(templates store.TemplateStore) error {
				versions, err := templates.Versions(ctx, args[0], limit)
				if err != nil {
					return storeFailure(ctx, err, "list versions")
				}
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Versions(args[0], versions) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum versions (1-50)")
	return cmd
}

func newTemplateRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name> <version>",
		Short: "Restore a historical version as the newest version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			number, err := parseVersion(cmd, args[1])
			if err != nil {
				return err
			}
			return withStore(cmd, func(templates store.TemplateStore) error {
				restored, err := templates.Restore(ctx, args[0], number)
				if err != nil {
					return storeFailure(ctx, err, "restore template")
				}
				observability.CLILogger.Info("Template restored",
					zap.String("name", restored.Name),
					zap.Int("from_version", number),
					zap.Int("version", restored.Version))
				return emit(cmd, func(f output.Formatter) (string, error) { return f.Template(restored) })
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newTemplateCmd())
}
