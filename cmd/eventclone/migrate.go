package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/eventclone/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the clone engine tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cmd.Context(), cfg.DatabaseOptions())
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := database.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d schema statements\n", applied)
		return nil
	},
}
