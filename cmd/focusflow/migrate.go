package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/db"
	"focusflow/backend/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DBPath == db.Disabled {
				return fmt.Errorf("DB_PATH is %q, nothing to migrate", db.Disabled)
			}

			database, err := db.OpenSQLite(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			logger.CLI().Info("migrations applied successfully", "db_path", cfg.DBPath)
			return nil
		},
	}
}
