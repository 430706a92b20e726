package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/tipwatch/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			db, err = database.NewDB(ctx, &cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			if dryRun {
				pending, err := db.PendingMigrations(ctx)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"pending": pending})
			}

			applied, err := db.Migrate(ctx)
			if err != nil {
				return err
			}
			appLog.WithField("applied", applied).Info("Migrations complete")
			return printJSON(map[string]any{"applied": applied})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	return cmd
}
