package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptfill/promptfill/internal/config"
	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/observability"
)

// openStore opens the configured engine with migrations applied.
func openStore(ctx context.Context, cfg *config.Config) (store.TemplateStore, error) {
	templates, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, storeFailure(ctx, err, "open store")
	}
	return templates, nil
}

func newStoreCmd() *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the template store",
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the template tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			db, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return storeFailure(ctx, err, "open store")
			}
			defer func() { _ = db.Close() }()

			if err := db.Migrate(ctx); err != nil {
				return storeFailure(ctx, err, "migrate store")
			}
			observability.CLILogger.Info("Store migrated", zap.String("driver", db.Driver()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", db.Driver())
			return err
		},
	}

	var driver string
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the store DDL for a driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if driver == "" {
				cfg, err := loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				driver = cfg.Store.Driver
			}
			ddl, err := store.Schema(driver)
			if err != nil {
				return storeFailure(cmd.Context(), err, "render schema")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ddl)
			return err
		},
	}
	schemaCmd.Flags().StringVar(&driver, "driver", "", "store driver (libsql, sqlite, postgres, mysql); defaults to the configured driver")

	storeCmd.AddCommand(migrateCmd, schemaCmd)
	return storeCmd
}

func init() {
	rootCmd.AddCommand(newStoreCmd())
}
