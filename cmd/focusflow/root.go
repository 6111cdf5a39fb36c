package main

import (
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"focusflow/backend/internal/calendar"
	"focusflow/backend/internal/config"
	"focusflow/backend/internal/db"
	"focusflow/backend/internal/identity"
	"focusflow/backend/internal/intent"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/session"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "focusflow",
		Short: "Local-first focus session backend",
		Long: `FocusFlow stores tasks and focus sessions per user, keeps streak and
total focus statistics up to date, and moves guest data to an account on
sign-in.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newRecalculateCommand())
	root.AddCommand(newSyncCommand())
	return root
}

// app holds everything the commands share once the config is loaded.
type app struct {
	cfg      config.Config
	database *sqlx.DB
	store    *repository.Store
	services session.Services
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	database := db.OpenOptional(cfg.DBPath, cfg.MigrationsDir)
	store := repository.NewStore(database)

	aggregates := service.NewAggregateService(store, cfg.Location, cfg.AggregateMaxRetries)
	var client calendar.Client
	if cfg.Calendar.Endpoint != "" {
		client = calendar.NewHTTPClient(cfg.Calendar.Endpoint, cfg.Calendar.Token, cfg.Calendar.Timeout)
	}

	return &app{
		cfg:      cfg,
		database: database,
		store:    store,
		services: session.Services{
			Tasks:      service.NewTaskService(store),
			Focus:      service.NewFocusService(store, aggregates),
			Aggregates: aggregates,
			Migrations: service.NewMigrationService(store, intent.NewFileFlag(cfg.IntentPath)),
			Sync:       service.NewSyncService(store, aggregates, client),
		},
	}, nil
}

func (a *app) newManager() *session.Manager {
	return session.NewManager(a.store, identity.NewTracker(), a.services)
}

func (a *app) Close() {
	if a.database != nil {
		_ = a.database.Close()
	}
}
