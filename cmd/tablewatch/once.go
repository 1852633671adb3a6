package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tablewatch/internal/app"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single check pass, wait for notifications and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(opts.configPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			n, err := a.Once(ctx)
			if err != nil {
				return err
			}
			snap := a.Poller().Snapshot()
			opened := 0
			for _, t := range snap.Targets {
				opened += int(t.Openings)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "check #%d: %d restaurants, %d with openings\n", n, len(snap.Targets), opened)
			return nil
		},
	}
}
