package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

func usersCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage feed viewers",
	}

	flags := []struct {
		use, short          string
		optOut, deactivated bool
	}{
		{use: "opt-out", short: "Stop scheduled feed generation for a viewer", optOut: true},
		{use: "opt-in", short: "Resume scheduled feed generation for a viewer"},
		{use: "deactivate", short: "Mark a viewer as deactivated", deactivated: true},
	}

	for _, f := range flags {
		cmd.AddCommand(&cobra.Command{
			Use:   f.use + " <did>",
			Short: f.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := signalContext()
				defer stop()

				a, err := newApp(ctx, *logLevel)
				if err != nil {
					return err
				}
				defer a.Close()

				return setUserFlags(ctx, a, args[0], f.optOut, f.deactivated)
			},
		})
	}
	return cmd
}

func setUserFlags(ctx context.Context, a *app, did string, optOut, deactivated bool) error {
	if !domain.ValidDID(did) {
		return fmt.Errorf("%q is not a DID", did)
	}
	if err := a.users.SetFlags(ctx, did, optOut, deactivated); err != nil {
		return err
	}
	a.logger.Info("user updated", "did", did, "opt_out", optOut, "deactivated", deactivated)
	return nil
}
