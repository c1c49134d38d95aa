package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-paper-feed/internal/config"
)

func migrateCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, *logLevel)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.repo == nil {
				return fmt.Errorf("migrate requires STORAGE_BACKEND=%s", config.BackendPostgres)
			}
			if err := a.repo.Migrate(ctx); err != nil {
				return err
			}
			a.logger.Info("schema applied")
			return nil
		},
	}
}
