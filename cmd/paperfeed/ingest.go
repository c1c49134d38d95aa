package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func ingestCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Subscribe to the firehose and forward post commits to the raw-events queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, *logLevel)
			if err != nil {
				return err
			}
			defer a.Close()

			ing, err := a.ingestor(ctx)
			if err != nil {
				return err
			}
			if err := ing.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
