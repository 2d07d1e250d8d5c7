package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/folioAuth/store/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("FOLIO_DATABASE_URL is required")
			}
			logger := newLogger(os.Stdout, cfg.LogLevel)

			pool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("database migrations completed")
			return nil
		},
	}
}
