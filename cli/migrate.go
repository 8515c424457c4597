package cli

import (
	"github.com/spf13/cobra"

	"autocatalog/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := setup(false); err != nil {
			return err
		}
		defer logger.Sync()

		logger.L().Info("schema is up to date")
		return nil
	},
}
