package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the configured driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Log)

		exec, err := store.New(cfg.DB.Config, logger)
		if err != nil {
			return err
		}
		defer exec.Close()

		applied, err := exec.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		}
		for _, v := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %05d\n", v)
		}
		return nil
	},
}
