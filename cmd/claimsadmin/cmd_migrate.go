package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/claim-workflow/internal/config"
	"github.com/garyjia/claim-workflow/pkg/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.Driver != config.DriverSQLite {
				return fmt.Errorf("migrate requires the sqlite driver, got %q", a.cfg.Database.Driver)
			}

			db, err := database.Open(database.Config{
				Path:        a.cfg.Database.Path,
				BusyTimeout: a.cfg.Database.BusyTimeout,
			}, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Migrate(cmd.Context(), db, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, a.cfg.Database.Path)
			return nil
		},
	}
}
