package main

import (
	"github.com/spf13/cobra"

	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/router"
	"focusflow/backend/internal/service"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if port != "" {
				a.cfg.Port = port
			}

			authService := service.NewAuthService(repository.NewUserRepository(a.database), a.cfg.JWTSecret, a.cfg.TokenTTL)
			manager := a.newManager()

			engine := router.New(authService, manager, router.Handlers{
				Auth:    handler.NewAuthHandler(authService),
				Session: handler.NewSessionHandler(manager),
				Tasks:   handler.NewTaskHandler(manager),
				Focus:   handler.NewFocusHandler(manager),
			}, a.cfg.CORSOrigins)

			logger.CLI().Info("backend listening", "port", a.cfg.Port, "durable_store", a.store.Available())
			return engine.Run(":" + a.cfg.Port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}
