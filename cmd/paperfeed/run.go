package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/bluesky-paper-feed/internal/firehose"
	"github.com/blackmichael/bluesky-paper-feed/internal/httpserver"
)

func runCmd(logLevel *string) *cobra.Command {
	var noIngest bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline role in one process",
		Long: `Run the ingestor, the three queue consumers, the dispatcher and the
HTTP server in a single process. With STORAGE_BACKEND=memory this needs no
external services besides the firehose and the public API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, *logLevel)
			if err != nil {
				return err
			}
			defer a.Close()

			filter, err := a.filterStage()
			if err != nil {
				return err
			}
			var ing *firehose.Ingestor
			if !noIngest {
				if ing, err = a.ingestor(ctx); err != nil {
					return err
				}
			}

			g, ctx := errgroup.WithContext(ctx)
			consume := func(name string, run func(context.Context) error) {
				g.Go(func() error {
					if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						return fmt.Errorf("%s: %w", name, err)
					}
					return nil
				})
			}

			consume("filter", func(ctx context.Context) error {
				return a.rawEvents.Consume(ctx, filterHandler(filter))
			})
			consume("generate", func(ctx context.Context) error {
				return a.genRequests.Consume(ctx, generateHandler(a.feedBuilder()))
			})
			consume("bookkeep", func(ctx context.Context) error {
				return a.accessEvents.Consume(ctx, bookkeepHandler(a.bookkeeper()))
			})
			consume("dispatch", func(ctx context.Context) error {
				a.dispatcher().Start(ctx, a.cfg.DispatchInterval)
				return nil
			})

			if ing != nil {
				consume("ingest", ing.Start)
			}

			server := httpserver.NewServer(a.cfg, a.feedService(), a.registry, a.logger)
			consume("serve", func(ctx context.Context) error {
				return serveUntilDone(ctx, a, server)
			})

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "do not subscribe to the firehose")
	return cmd
}
