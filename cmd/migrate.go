package cmd

import (
	"example.com/backstage/invoicing/internal/database"
	"example.com/backstage/invoicing/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.DB.AutoMigrate = true

		db, readOnlyDB, err := database.Open(cfg.DB, metrics.NewMetrics())
		if err != nil {
			return err
		}
		defer database.Close(db, readOnlyDB)

		log.Info().Msg("Database schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
