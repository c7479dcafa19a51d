package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledgerdesk/api/internal/config"
	"ledgerdesk/api/internal/store"
)

func newMigrateCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}

			ctx := cmd.Context()
			db, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			var versions []string
			if down {
				versions, err = store.RollbackMigrations(ctx, db, store.Migrations())
			} else {
				versions, err = store.ApplyMigrations(ctx, db, store.Migrations())
			}
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert all applied migrations")
	return cmd
}
