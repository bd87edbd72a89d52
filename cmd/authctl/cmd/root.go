package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
)

var dbCfg database.Config

var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Administer the auth service database",
	Long: `authctl applies schema migrations and manages accounts directly in the
database used by the auth service. It reads the same DATABASE_* settings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		dbCfg = database.ConfigFromEnv()
		if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
			dbCfg.Driver = v
		}
		if v, _ := cmd.Flags().GetString("db-url"); v != "" {
			dbCfg.DSN = v
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: postgres or sqlite (env: DATABASE_DRIVER)")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection string (env: DATABASE_URL)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(usersCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
