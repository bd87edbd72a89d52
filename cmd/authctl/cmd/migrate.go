package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(dbCfg)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer db.Close()

		if err := database.Migrate(db, dbCfg.Driver); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
