package cmd

import (
	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/database"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the service record tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		configureLogging(cfg)

		if cfg.DB.DSN == "" {
			return errors.New("database.dsn is not configured")
		}

		db, err := database.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		log.Info().Msg("Service record schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
