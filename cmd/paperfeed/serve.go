package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-paper-feed/internal/httpserver"
)

func serveCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed generator XRPC endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, *logLevel)
			if err != nil {
				return err
			}
			defer a.Close()

			server := httpserver.NewServer(a.cfg, a.feedService(), a.registry, a.logger)
			return serveUntilDone(ctx, a, server)
		},
	}
}

// serveUntilDone runs server until ctx is cancelled and then shuts it down.
func serveUntilDone(ctx context.Context, a *app, server *httpserver.Server) error {
	errc := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	a.logger.Info("server started", "port", a.cfg.Port, "hostname", a.cfg.Hostname, "feed", a.cfg.FeedURI())

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error shutting down http server", "error", err)
	}
	return nil
}
