package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL ledger tables",
	Long:  `migrate connects with the db.* settings and creates the ledger tables if they are missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := database.NewPool(cmd.Context(), cfg.DB, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ledger tables are up to date")
		return nil
	},
}
