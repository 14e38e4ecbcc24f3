package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := storage.RunMigrations(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			a.logger.Info("Database migrated", "path", a.cfg.SQLiteDBPath, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
