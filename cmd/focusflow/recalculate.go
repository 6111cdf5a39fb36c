package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

func newRecalculateCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Rebuild a user's streak and total focus time from their history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if !a.store.Available() {
				return errors.New("no durable store attached")
			}

			meta, err := a.services.Aggregates.Recalculate(cmd.Context(), userID)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(meta)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "guest", "user id to recalculate")
	return cmd
}

func newSyncCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push a user's pending focus records to the calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Calendar.Endpoint == "" {
				return errors.New("CALENDAR_ENDPOINT is not set")
			}

			synced, err := a.services.Sync.SyncPending(cmd.Context(), userID)
			if err != nil {
				return err
			}
			cmd.Printf("synced %d record(s) for %s\n", synced, userID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "guest", "user id whose records to sync")
	return cmd
}
