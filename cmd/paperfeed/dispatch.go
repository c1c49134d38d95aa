package main

import (
	"github.com/spf13/cobra"
)

func dispatchCmd(logLevel *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Enqueue feed generation requests for all active users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, *logLevel)
			if err != nil {
				return err
			}
			defer a.Close()

			d := a.dispatcher()
			if once {
				_, err := d.Run(ctx)
				return err
			}
			d.Start(ctx, a.cfg.DispatchInterval)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "dispatch a single run and exit")
	return cmd
}
