package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-paper-feed/internal/queue"
)

func consumeCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run a queue-triggered pipeline stage",
	}

	stages := []struct {
		use, short string
		bind       func(*app) (queue.Consumer, queue.Handler, error)
	}{
		{
			use:   "filter",
			short: "Classify raw firehose batches and persist paper posts",
			bind: func(a *app) (queue.Consumer, queue.Handler, error) {
				stage, err := a.filterStage()
				if err != nil {
					return nil, nil, err
				}
				return a.rawEvents, filterHandler(stage), nil
			},
		},
		{
			use:   "generate",
			short: "Build and cache feeds for generation requests",
			bind: func(a *app) (queue.Consumer, queue.Handler, error) {
				return a.genRequests, generateHandler(a.feedBuilder()), nil
			},
		},
		{
			use:   "bookkeep",
			short: "Record feed accesses in the access log and user store",
			bind: func(a *app) (queue.Consumer, queue.Handler, error) {
				return a.accessEvents, bookkeepHandler(a.bookkeeper()), nil
			},
		},
	}

	for _, s := range stages {
		cmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := signalContext()
				defer stop()

				a, err := newApp(ctx, *logLevel)
				if err != nil {
					return err
				}
				defer a.Close()

				consumer, handler, err := s.bind(a)
				if err != nil {
					return err
				}
				if err := consumer.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("consume %s: %w", s.use, err)
				}
				return nil
			},
		})
	}
	return cmd
}
